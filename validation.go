package main

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

var (
	isbnRegexp = regexp.MustCompile(`^(\d{9}[\dX]|\d{13})$`)

	notBlank = validation.NewStringRule(func(s string) bool {
		return strings.TrimSpace(s) != ""
	}, "cannot be blank")

	validISBN = validation.NewStringRule(func(s string) bool {
		return isbnRegexp.MatchString(NormalizeISBN(s))
	}, "must be a valid isbn-10 or isbn-13")

	webhookURL = validation.By(func(value interface{}) error {
		s, _ := value.(string)
		if err := checkWebhookURL(s); err != nil {
			return errors.New("must be an absolute http or https url")
		}
		return nil
	})
)

// checkWebhookURL accepts only absolute http(s) urls with a host.
func checkWebhookURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

// Validate checks the content of a book creation or update request.
func (b Book) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.Title, validation.Required, notBlank, validation.Length(1, 255)),
		validation.Field(&b.Description, validation.Required, notBlank),
		validation.Field(&b.Author, validation.Required, notBlank, validation.Length(1, 255)),
		validation.Field(&b.ISBN, validation.Required, validISBN),
		validation.Field(&b.Price, validation.Required, validation.Min(0.0).Exclusive()),
		validation.Field(&b.PublishedYear, validation.Min(1450), validation.Max(9999)),
	)
}

// Validate checks the content of a category creation request.
func (c Category) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Name, validation.Required, notBlank, validation.Length(1, 100)),
		validation.Field(&c.Description, validation.Length(0, 1000)),
	)
}

// Validate checks the content of a product creation or update request.
func (p Product) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required, notBlank, validation.Length(1, 255)),
		validation.Field(&p.Price, validation.Required, validation.Min(0.0).Exclusive()),
		validation.Field(&p.CategoryID, validation.Required, notBlank),
	)
}

// Validate checks the content of a review creation request.
func (r Review) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ProductID, validation.Required, notBlank),
		validation.Field(&r.Author, validation.Required, notBlank, validation.Length(1, 100)),
		validation.Field(&r.Rating, validation.Required, validation.Min(1), validation.Max(5)),
		validation.Field(&r.Comment, validation.Length(0, 2000)),
	)
}

// Validate checks the content of a notification intake request.
func (n Notification) Validate() error {
	return validation.ValidateStruct(&n,
		validation.Field(&n.Recipient, validation.Required, notBlank,
			validation.When(n.Channel == ChannelEmail, is.EmailFormat),
			validation.When(n.Channel == ChannelWebhook, webhookURL),
		),
		validation.Field(&n.Channel, validation.Required, validation.In(ChannelLog, ChannelWebhook, ChannelEmail)),
		validation.Field(&n.Message, validation.Required, notBlank, validation.Length(1, 4000)),
		validation.Field(&n.Subject, validation.Length(0, 255)),
	)
}

// AuthRequest is the payload of a token request.
type AuthRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate checks the content of a token request.
func (a AuthRequest) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Username, validation.Required, notBlank),
		validation.Field(&a.Password, validation.Required),
	)
}
