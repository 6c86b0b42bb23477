//go:build !amd64

package codegen

import "fmt"

// assembleIndirectJumpStub has no golang-asm backend wired for this
// architecture yet; buildArtifact falls back to a 16-byte zero-filled body
// and the CallBridge's closure-table dispatch, which does not require the
// body to contain real code.
func assembleIndirectJumpStub(vmctxOffset int64) ([]byte, error) {
	return nil, fmt.Errorf("codegen: native trampoline assembly not implemented for this architecture")
}
