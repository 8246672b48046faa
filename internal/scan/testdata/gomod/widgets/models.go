package widgets

import "example.com/queryset"

var (
	Widget = queryset.Register[Row]("Widget")
	Gadget = queryset.Register[Row]("Gadget", queryset.OrderBy(byName))
)
