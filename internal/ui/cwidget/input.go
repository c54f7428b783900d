package cwidget

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

var ErrOutOfRange = errors.New("value out of range")

// Input is a labelled entry that only reports values accepted by Validator.
// The label shows the last accepted value.
type Input[T any] struct {
	widget.BaseWidget

	labelWidget *widget.Label
	entryWidget *widget.Entry
	errorWidget *widget.Label

	LabelText   string
	Placeholder string

	DefaultValue T

	OnChanged func(T)

	Validator func(string) (T, error)
}

// NewIntInput builds an input accepting integers in [lo, hi]. An empty entry
// falls back to defaultValue.
func NewIntInput(label, placeholder string, defaultValue, lo, hi int, onChanged func(int)) *Input[int] {
	input := &Input[int]{
		LabelText:    label,
		Placeholder:  placeholder,
		OnChanged:    onChanged,
		DefaultValue: defaultValue,
		Validator:    IntRange(defaultValue, lo, hi),
	}
	input.build(func(v int) string { return strconv.Itoa(v) })
	return input
}

// IntRange parses a decimal integer and checks it against [lo, hi].
func IntRange(fallback, lo, hi int) func(string) (int, error) {
	return func(s string) (int, error) {
		s = strings.TrimSpace(s)
		if s == "" {
			return fallback, nil
		}

		v, err := strconv.Atoi(s)
		if err != nil {
			return fallback, fmt.Errorf("%q is not a number", s)
		}
		if v < lo || v > hi {
			return fallback, fmt.Errorf("%w: %d not in %d..%d", ErrOutOfRange, v, lo, hi)
		}
		return v, nil
	}
}

func (item *Input[T]) build(format func(T) string) {
	item.labelWidget = widget.NewLabel(fmt.Sprintf("%s: %s", item.LabelText, format(item.DefaultValue)))
	item.labelWidget.TextStyle = fyne.TextStyle{Bold: true}

	item.entryWidget = widget.NewEntry()
	item.entryWidget.SetPlaceHolder(item.Placeholder)

	item.errorWidget = widget.NewLabel("")
	item.errorWidget.Hidden = true
	item.errorWidget.TextStyle = fyne.TextStyle{Italic: true}
	item.errorWidget.Importance = widget.DangerImportance

	item.entryWidget.OnChanged = func(s string) {
		res, err := item.Validator(s)
		item.SetError(err)
		if err != nil {
			return
		}

		if item.OnChanged != nil {
			item.OnChanged(res)
		}
		item.labelWidget.SetText(fmt.Sprintf("%s: %s", item.LabelText, format(res)))
	}

	item.ExtendBaseWidget(item)
}

func (item *Input[T]) CreateRenderer() fyne.WidgetRenderer {
	c := container.NewVBox(
		item.labelWidget,
		item.entryWidget,
		item.errorWidget,
	)

	return widget.NewSimpleRenderer(c)
}

func (item *Input[T]) SetError(err error) {
	item.errorWidget.Hidden = err == nil
	if err != nil {
		item.errorWidget.SetText(err.Error())
	}
	item.errorWidget.Refresh()
}
