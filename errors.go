// This is free and unencumbered software released into the public domain.
//
// Anyone is free to copy, modify, publish, use, compile, sell, or
// distribute this software, either in source code form or as a compiled
// binary, for any purpose, commercial or non-commercial, and by any
// means.
//
// In jurisdictions that recognize copyright laws, the author or authors
// of this software dedicate any and all copyright interest in the
// software to the public domain. We make this dedication for the benefit
// of the public at large and to the detriment of our heirs and
// successors. We intend this dedication to be an overt act of
// relinquishment in perpetuity of all present and future rights to this
// software under copyright law.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
// EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF
// MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.
// IN NO EVENT SHALL THE AUTHORS BE LIABLE FOR ANY CLAIM, DAMAGES OR
// OTHER LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE,
// ARISING FROM, OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR
// OTHER DEALINGS IN THE SOFTWARE.
//
// For more information, please refer to <https://unlicense.org>

package tgdh

import "errors"

// Sentinel errors for the tree and exchange protocols. Callers branch on
// these with errors.Is; wrapped with fmt.Errorf("...: %w", ErrX) at the
// call site so the failing node/member is still visible in the message.
var (
	// ErrStructure signals a broken tree invariant (sibling() on the root,
	// a non-leaf without two children, and similar). Fatal.
	ErrStructure = errors.New("tgdh: tree structure invariant violated")

	// ErrNotFound is returned by FindByMID/FindByName when no node matches.
	ErrNotFound = errors.New("tgdh: node not found")

	// ErrUninit is returned by GenBlindKey when the private key isn't set yet.
	ErrUninit = errors.New("tgdh: key material not initialized")

	// ErrMissingBlindKey is returned by the recurrence when the next
	// co-path blinded key hasn't arrived yet. Recoverable: wait and retry.
	ErrMissingBlindKey = errors.New("tgdh: blinded key not yet available")

	// ErrGroupEmpty is returned by Leave when removing the member would
	// leave the group with a single member.
	ErrGroupEmpty = errors.New("tgdh: group would become empty")

	// ErrTransport wraps a publish/connect failure from a Transport.
	ErrTransport = errors.New("tgdh: transport error")
)
