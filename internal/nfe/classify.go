package nfe

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

const (
	tagStatus   = "cStat"
	tagEmission = "tpEmis"
	tagReason   = "xMotivo"

	emissionNormal = "1"
)

var authorizedStatuses = map[string]struct{}{
	"100": {},
	"150": {},
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var errNoRoot = errors.New("no root element")

// fields holds the first occurrence of each tag we care about.
// A nil pointer means the tag never appeared in the document.
type fields struct {
	status   *string
	emission *string
	reason   *string
}

// Classify decides the outcome for one NFe document. It never fails:
// documents that are not well-formed XML come back as malformed.
func Classify(document []byte) Outcome {
	found, err := extract(document)
	if err != nil {
		return Malformed()
	}

	status := StatusMissing
	if found.status != nil {
		status = *found.status
	}
	reason := ReasonMissing
	if found.reason != nil {
		reason = *found.reason
	}

	// exact string comparison: "100 " or "0100" are not authorized
	if _, ok := authorizedStatuses[status]; !ok {
		return Outcome{Category: CategoryRejected, ReasonCode: status, ReasonText: reason}
	}
	if found.emission != nil && *found.emission == emissionNormal {
		return Outcome{Category: CategoryApproved}
	}
	return Outcome{Category: CategoryContingency}
}

// extract walks the whole document so that well-formedness is checked
// end to end, capturing the text content of the first cStat, tpEmis and
// xMotivo elements in document order.
func extract(document []byte) (fields, error) {
	var found fields

	decoder := xml.NewDecoder(bytes.NewReader(bytes.TrimPrefix(document, utf8BOM)))
	decoder.Strict = true
	decoder.CharsetReader = charset.NewReaderLabel

	var (
		depth     int
		roots     int
		capturing *string
		capDepth  int
		text      strings.Builder
	)

	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fields{}, err
		}

		switch tok := token.(type) {
		case xml.StartElement:
			if depth == 0 {
				roots++
				if roots > 1 {
					return fields{}, errors.New("multiple root elements")
				}
			}
			depth++
			if capturing == nil {
				if target := found.slot(tok.Name.Local); target != nil {
					capturing = new(string)
					capDepth = depth
					text.Reset()
					*target = capturing
				}
			}
		case xml.EndElement:
			if capturing != nil && depth == capDepth {
				*capturing = text.String()
				capturing = nil
			}
			depth--
		case xml.CharData:
			if depth == 0 {
				if len(bytes.TrimSpace(tok)) > 0 {
					return fields{}, errors.New("text outside root element")
				}
				continue
			}
			if capturing != nil {
				text.Write(tok)
			}
		}
	}

	if roots == 0 {
		return fields{}, errNoRoot
	}
	return found, nil
}

// slot returns where the value for tag should be stored, or nil when the
// tag is not of interest or was already seen.
func (f *fields) slot(tag string) **string {
	switch tag {
	case tagStatus:
		if f.status == nil {
			return &f.status
		}
	case tagEmission:
		if f.emission == nil {
			return &f.emission
		}
	case tagReason:
		if f.reason == nil {
			return &f.reason
		}
	}
	return nil
}
