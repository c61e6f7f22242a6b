package course

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/educa/core"
)

// ItemKind discriminates the Item variants.
type ItemKind string

const (
	KindText  ItemKind = "text"
	KindVideo ItemKind = "video"
	KindImage ItemKind = "image"
	KindFile  ItemKind = "file"
)

var ItemKinds = []ItemKind{KindText, KindVideo, KindImage, KindFile}

func ParseItemKind(s string) (ItemKind, bool) {
	for _, k := range ItemKinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// HasFile reports whether items of kind k carry an uploaded file.
func (k ItemKind) HasFile() bool {
	return k == KindImage || k == KindFile
}

// Item is a piece of course material. Only the field matching Kind is set:
// Content (text), URL (video) or File (image & file).
type Item struct {
	ID        int64     `json:"id"`
	Kind      ItemKind  `json:"kind"`
	OwnerID   string    `json:"owner_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content,omitempty"`
	URL       string    `json:"url,omitempty"`
	File      string    `json:"file,omitempty"`
	FileURL   string    `json:"file_url,omitempty"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// ItemForm creates or updates an Item. File uploads are handled separately.
type ItemForm struct {
	Title   string `json:"title" form:"title" validate:"required,max=250"`
	Content string `json:"content" form:"content"`
	URL     string `json:"url" form:"url"`
}

func (f *ItemForm) Validate(kind ItemKind, validate *validator.Validate) error {
	f.Title = core.CleanString(f.Title)
	f.URL = core.CleanString(f.URL)
	if err := validate.Struct(f); err != nil {
		return err
	}

	switch kind {
	case KindText:
		if core.CleanString(f.Content) == "" {
			return core.NewValidationError(nil, core.FieldError{Field: "content", Error: "this field is required"})
		}
	case KindVideo:
		if err := validate.Var(f.URL, "required,url"); err != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "url", Error: "url must be a valid URL"})
		}
	}
	return nil
}
