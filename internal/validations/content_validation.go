package validations

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/unclebandit/postplanner-backend/internal/model"
)

func ValidateContent(c *model.Content) error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.AccountID, validation.Required),
		validation.Field(&c.Caption, validation.Required, validation.Length(1, 2200)),
		validation.Field(&c.Type, validation.Required,
			validation.In(model.PostWithImage, model.PostReel, model.PostStory)),
		validation.Field(&c.HashTags, validation.Length(0, 30), validation.Each(validation.Required)),
	)
	if err != nil {
		return toAppError("content", err)
	}
	return nil
}
