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

package main

import (
	"context"
	"fmt"
	"os"
	"runtime/pprof"
	"time"

	"github.com/tgdh/tgdh"
)

func main() {
	benchmarkInitialExchange()
}

// benchmarkInitialExchange times how long it takes a group of a given
// size to run the full initial key exchange to convergence, repeated
// over a few group sizes. Building the initial trees is not timed.
func benchmarkInitialExchange() {
	f, _ := os.Create("cpu.prof")
	g, _ := os.Create("mem.prof")
	_ = pprof.StartCPUProfile(f)
	defer pprof.StopCPUProfile()
	defer func() { _ = pprof.WriteHeapProfile(g) }()

	ctx := context.Background()
	for _, size := range []int{8, 32, 128, 512} {
		for attempt := 0; attempt < 3; attempt++ {
			trees := make(map[int]*tgdh.Tree, size)
			for uid := 1; uid <= size; uid++ {
				t, err := tgdh.NewTree(size, uid)
				if err != nil {
					panic(err)
				}
				trees[uid] = t
			}

			coord := tgdh.NewCoordinator(tgdh.NewMemTransport())
			start := time.Now()
			if err := coord.RunInitialExchange(ctx, trees); err != nil {
				panic(err)
			}
			elapsed := time.Since(start)
			fmt.Printf("size=%d attempt=%d took %v\n", size, attempt, elapsed)
		}
	}
}
