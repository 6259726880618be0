package pool_test

import (
	"fmt"

	"github.com/ajitpratap0/voxpack/pkg/pool"
)

// ExampleNew demonstrates creating and using a generic pool.
func ExampleNew() {
	rows := pool.New(
		func() []int { return make([]int, 0, 16) },
		nil,
	)

	row := rows.Get()
	row = append(row, 3, 3, 3)
	fmt.Println(len(row), cap(row))
	rows.Put(row[:0])

	// Output:
	// 3 16
}

// ExampleBufferPool shows fixed-size slices served from size buckets.
func ExampleBufferPool() {
	bp := pool.NewBufferPool()

	row := bp.Get(24)
	defer bp.Put(row)

	fmt.Println(len(row), cap(row))

	// Output:
	// 24 64
}
