package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"sort"
	"strings"
)

// Body is an encoded request payload.
type Body interface {
	encode() (io.Reader, string, error)
}

type jsonBody struct{ v any }

// JSON encodes v as application/json.
func JSON(v any) Body { return jsonBody{v: v} }

func (b jsonBody) encode() (io.Reader, string, error) {
	data, err := json.Marshal(b.v)
	if err != nil {
		return nil, "", fmt.Errorf("encode json body: %w", err)
	}
	return bytes.NewReader(data), "application/json", nil
}

type formBody struct{ values url.Values }

// Form encodes values as application/x-www-form-urlencoded.
func Form(values url.Values) Body { return formBody{values: values} }

func (b formBody) encode() (io.Reader, string, error) {
	return strings.NewReader(b.values.Encode()), "application/x-www-form-urlencoded", nil
}

type multipartBody struct{ values url.Values }

// Multipart encodes values as multipart/form-data fields.
func Multipart(values url.Values) Body { return multipartBody{values: values} }

func (b multipartBody) encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(b.values))
	for k := range b.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		for _, v := range b.values[k] {
			if err := w.WriteField(k, v); err != nil {
				return nil, "", fmt.Errorf("encode multipart field %s: %w", k, err)
			}
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("encode multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
