package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"nighttangerine-pos/internal/service"

	"github.com/shopspring/decimal"
)

// productRequest is the raw product payload. Fields are kept as raw JSON so
// the handler can tell "absent" from "explicitly null", which matters for
// partial updates and for clearing images. Accepted field aliases
// (image_url/imageUrl and friends) are folded onto one canonical set here,
// before any validation runs.
type productRequest struct {
	Name      json.RawMessage `json:"name"`
	Price     json.RawMessage `json:"price"`
	Category  json.RawMessage `json:"category"`
	Amount    json.RawMessage `json:"amount"`
	Hidden    json.RawMessage `json:"hidden"`
	Available json.RawMessage `json:"available"`

	ImageURL         json.RawMessage `json:"image_url"`
	ImageURLAlt      json.RawMessage `json:"imageUrl"`
	ImageBase64      json.RawMessage `json:"image_base64"`
	ImageBase64Alt   json.RawMessage `json:"imageBase64"`
	ImageMimeType    json.RawMessage `json:"image_mime_type"`
	ImageMimeTypeAlt json.RawMessage `json:"imageMimeType"`
}

func (req *productRequest) toCreateInput() (service.CreateProductInput, error) {
	var input service.CreateProductInput

	name, _, err := rawString(req.Name, "name")
	if err != nil {
		return input, err
	}
	category, _, err := rawString(req.Category, "category")
	if err != nil {
		return input, err
	}
	if name == nil || category == nil || req.Price == nil {
		return input, errors.New("name, price and category are required")
	}

	price, err := rawPrice(req.Price)
	if err != nil {
		return input, err
	}

	amount, _, err := rawString(req.Amount, "amount")
	if err != nil {
		return input, err
	}

	hidden, err := rawBool(req.Hidden, false)
	if err != nil {
		return input, err
	}
	available, err := rawBool(req.Available, true)
	if err != nil {
		return input, err
	}

	image, err := req.imageInput()
	if err != nil {
		return input, err
	}

	input = service.CreateProductInput{
		Name:      *name,
		Price:     *price,
		Category:  *category,
		Amount:    amount,
		Hidden:    hidden,
		Available: available,
		Image:     image,
	}
	return input, nil
}

func (req *productRequest) toUpdateInput() (service.UpdateProductInput, error) {
	var input service.UpdateProductInput

	name, nameSet, err := rawString(req.Name, "name")
	if err != nil {
		return input, err
	}
	if nameSet {
		if name == nil {
			return input, errors.New("name must be a non-empty string")
		}
		input.Name = name
	}

	category, categorySet, err := rawString(req.Category, "category")
	if err != nil {
		return input, err
	}
	if categorySet {
		if category == nil {
			return input, errors.New("category must be a non-empty string")
		}
		input.Category = category
	}

	if req.Price != nil {
		price, err := rawPrice(req.Price)
		if err != nil {
			return input, err
		}
		input.Price = price
	}

	amount, amountSet, err := rawString(req.Amount, "amount")
	if err != nil {
		return input, err
	}
	if amountSet {
		input.Amount = amount
		input.AmountSet = true
	}

	if req.Hidden != nil {
		hidden, err := rawBool(req.Hidden, false)
		if err != nil {
			return input, err
		}
		input.Hidden = &hidden
	}
	if req.Available != nil {
		available, err := rawBool(req.Available, true)
		if err != nil {
			return input, err
		}
		input.Available = &available
	}

	image, err := req.imageInput()
	if err != nil {
		return input, err
	}
	input.Image = image

	return input, nil
}

// imageInput folds the alias pairs onto the canonical image fields. The
// snake_case spelling wins when both are supplied.
func (req *productRequest) imageInput() (service.ImageInput, error) {
	var input service.ImageInput

	base64Raw := firstRaw(req.ImageBase64, req.ImageBase64Alt)
	if base64Raw != nil {
		value, _, err := rawString(base64Raw, "image_base64")
		if err != nil {
			return input, errors.New("image_base64 must be a base64-encoded string, null, or omitted")
		}
		input.Base64Set = true
		input.Base64 = value

		mimeRaw := firstRaw(req.ImageMimeType, req.ImageMimeTypeAlt)
		if mimeRaw != nil {
			mime, _, err := rawString(mimeRaw, "image_mime_type")
			if err != nil {
				return input, err
			}
			input.MimeType = mime
		}
	}

	urlRaw := firstRaw(req.ImageURL, req.ImageURLAlt)
	if urlRaw != nil {
		value, _, err := rawString(urlRaw, "image_url")
		if err != nil {
			return input, errors.New("image_url must be a string, null, or omitted")
		}
		input.URLSet = true
		input.URL = value
	}

	return input, nil
}

func firstRaw(raws ...json.RawMessage) json.RawMessage {
	for _, raw := range raws {
		if raw != nil {
			return raw
		}
	}
	return nil
}

// rawString decodes a JSON field that may be absent, null, or a string.
// Returns (value, present, err); explicit null and blank strings come back
// as a nil value with present=true.
func rawString(raw json.RawMessage, field string) (*string, bool, error) {
	if raw == nil {
		return nil, false, nil
	}
	if string(raw) == "null" {
		return nil, true, nil
	}

	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, true, fmt.Errorf("%s must be a string", field)
	}
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, true, nil
	}
	return &trimmed, true, nil
}

// rawPrice accepts a JSON number or a numeric string and requires a positive
// value.
func rawPrice(raw json.RawMessage) (*decimal.Decimal, error) {
	if raw == nil || string(raw) == "null" {
		return nil, errors.New("price must be greater than 0")
	}

	text := strings.Trim(string(raw), `"`)
	price, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil || !price.IsPositive() {
		return nil, errors.New("price must be greater than 0")
	}
	return &price, nil
}

// rawBool mirrors the permissive boolean coercion of the settings UI: JSON
// booleans, numbers, and common string spellings are all accepted.
func rawBool(raw json.RawMessage, defaultValue bool) (bool, error) {
	if raw == nil || string(raw) == "null" {
		return defaultValue, nil
	}

	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n != 0, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "":
			return defaultValue, nil
		case "true", "1", "yes", "y", "on":
			return true, nil
		case "false", "0", "no", "n", "off":
			return false, nil
		}
		// Fall through for unrecognized spellings.
		return defaultValue, nil
	}

	return defaultValue, errors.New("invalid boolean value: " + strconv.Quote(string(raw)))
}
