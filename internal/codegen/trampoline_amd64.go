//go:build amd64

package codegen

import (
	goasm "github.com/twitchyliquid64/golang-asm"
	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/x86"

	"github.com/wafoundation/wasmer/api"
)

// assembleIndirectJumpStub emits the fixed machine code buildArtifact uses
// as every locally defined function's body: load the callee's entry
// address out of the VM context word at vmctxOffset (passed in AX) into
// CX, then jump to it. This is the minimal "PLT-style" stub shape spec.md
// §4.7 describes for both trampoline directions. The stub carries no
// relocations; calls are dispatched through CallBridge's table keyed by
// the stub's address, not by executing it.
func assembleIndirectJumpStub(vmctxOffset int64) ([]byte, error) {
	b, err := goasm.NewBuilder("amd64", 16)
	if err != nil {
		return nil, err
	}

	mov := b.NewProg()
	mov.As = x86.AMOVQ
	mov.From.Type = obj.TYPE_MEM
	mov.From.Reg = x86.REG_AX
	mov.From.Offset = vmctxOffset
	mov.To.Type = obj.TYPE_REG
	mov.To.Reg = x86.REG_CX
	b.AddInstruction(mov)

	jmp := b.NewProg()
	jmp.As = x86.AJMP
	jmp.To.Type = obj.TYPE_REG
	jmp.To.Reg = x86.REG_CX
	b.AddInstruction(jmp)

	return b.Assemble(), nil
}

// valSlotLoadWidth confirms the trampoline's fixed-width assumption matches
// the value-array ABI; callers that change ValSlotSize without updating the
// generated MOVQ width would silently corrupt arguments, so this stays as a
// single source of truth both sides can assert against.
const valSlotLoadWidth = api.ValSlotSize
