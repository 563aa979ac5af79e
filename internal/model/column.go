package model

import "strings"

type Column struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Order int    `json:"order"`
	Tasks []Task `json:"tasks"`
}

type NewColumn struct {
	Title string `json:"title"`
	Order *int   `json:"order,omitempty"`
}

type ColumnPatch struct {
	Title *string `json:"title,omitempty"`
	Order *int    `json:"order,omitempty"`
}

func (p ColumnPatch) Empty() bool {
	return p.Title == nil && p.Order == nil
}

// Apply writes the patch over c. Tasks are not touched.
func (p ColumnPatch) Apply(c Column) Column {
	if p.Title != nil {
		c.Title = *p.Title
	}
	if p.Order != nil {
		c.Order = *p.Order
	}
	return c
}

func (p ColumnPatch) Validate() error {
	if p.Title != nil {
		if err := ValidateTitle(*p.Title); err != nil {
			return err
		}
	}
	if p.Order != nil && *p.Order < 0 {
		return ErrValidation
	}
	return nil
}

func (n NewColumn) Validate() error {
	if err := ValidateTitle(n.Title); err != nil {
		return err
	}
	if n.Order != nil && *n.Order < 0 {
		return ErrValidation
	}
	return nil
}

// BoardFilter is passed verbatim to the server; filtering happens there.
type BoardFilter struct {
	Status Status
	Search string
}

// StatusParam is the value of the status query parameter, or "" when the
// filter should be omitted.
func (f BoardFilter) StatusParam() string {
	if f.Status == "" || f.Status == StatusAll {
		return ""
	}
	return string(f.Status)
}

func (f BoardFilter) SearchParam() string {
	return strings.TrimSpace(f.Search)
}

func (f BoardFilter) Validate() error {
	if f.Status == "" || f.Status == StatusAll || f.Status.Valid() {
		return nil
	}
	return ErrValidation
}
