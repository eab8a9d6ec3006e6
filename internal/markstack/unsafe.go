package markstack

import (
	"unsafe"

	"github.com/zbench/stripemark/internal/stripe"
)

// unsafePointerOf recovers a *MarkStack from a pointer to its embedded
// stripe.StackNode. This relies on StackNode being MarkStack's first
// field, which asNode's definition guarantees by construction (Go
// embeds it at offset 0).
func unsafePointerOf(n *stripe.StackNode) unsafe.Pointer {
	return unsafe.Pointer(n)
}
