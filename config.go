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

import (
	"sync"

	"github.com/tgdh/tgdh/crypto"
)

var (
	defaultParams    *crypto.Params
	defaultParamsMtx sync.Mutex
)

// DefaultGroupParams returns the package-wide Diffie-Hellman group (the
// fixed g=2, RFC 3526 2048-bit MODP prime from spec.md §6), building it
// once and reusing it for every tree in the process.
func DefaultGroupParams() *crypto.Params {
	defaultParamsMtx.Lock()
	defer defaultParamsMtx.Unlock()

	if defaultParams != nil {
		return defaultParams
	}
	defaultParams = crypto.NewParams()
	return defaultParams
}
