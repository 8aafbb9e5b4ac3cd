package pagination_test

import (
	"fmt"

	"github.com/Sternrassler/todo-client/pkg/pagination"
)

func ExampleController_Meta() {
	ctrl := pagination.NewController()
	meta := ctrl.Meta(10)

	fmt.Println(meta.TotalPages, meta.Pages, meta.FirstDisabled, meta.LastDisabled)

	ctrl.GoToLast(meta.TotalPages)
	fmt.Println(ctrl.Page(), ctrl.LastDisabled(meta.TotalPages))
	// Output:
	// 3 [1 2 3] true false
	// 3 true
}

func ExamplePageCount() {
	fmt.Println(pagination.PageCount(10, 4), pagination.PageCount(0, 4))
	// Output: 3 0
}
