package handler

import (
	"fmt"
	"sync"

	"github.com/damoang/angple-moderation/internal/domain"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators adds the moderation binding tags (content_type, outcome)
// to gin's validator. Safe to call more than once.
func RegisterValidators() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = fmt.Errorf("unexpected binding validator engine %T", binding.Validator.Engine())
			return
		}
		if err = v.RegisterValidation("content_type", validContentType); err != nil {
			return
		}
		err = v.RegisterValidation("outcome", validOutcome)
	})
	return err
}

func validContentType(fl validator.FieldLevel) bool {
	return domain.ContentType(fl.Field().String()).Valid()
}

func validOutcome(fl validator.FieldLevel) bool {
	return domain.Outcome(fl.Field().String()).Valid()
}
