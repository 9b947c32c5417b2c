package annotation

import (
	"encoding/json"
	"io"

	"github.com/turtacn/opinion-miner/pkg/errors"
)

// Decode reads a JSON annotation document from r and validates it.  A
// document without a filename gets StdinFilename.
func Decode(r io.Reader) (*Document, error) {
	var doc Document
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDocumentCodec, "failed to decode annotation document")
	}
	if doc.Filename == "" {
		doc.Filename = StdinFilename
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// DecodeBytes is Decode over a byte slice.
func DecodeBytes(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDocumentCodec, "failed to decode annotation document")
	}
	if doc.Filename == "" {
		doc.Filename = StdinFilename
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Encode writes doc to w as indented JSON.
func Encode(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return errors.Wrap(err, errors.ErrCodeDocumentCodec, "failed to encode annotation document")
	}
	return nil
}

// EncodeBytes is Encode into a byte slice.
func EncodeBytes(doc *Document) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDocumentCodec, "failed to encode annotation document")
	}
	return data, nil
}
