package naming

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

const utf8Name = "utf-8"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// EncodingInfo describes the detected encoding of an existing file.
type EncodingInfo struct {
	Encoding string
	HasBOM   bool
}

// DetectEncoding inspects file content. Content that is not valid UTF-8 is
// reported with an empty encoding name.
func DetectEncoding(data []byte) EncodingInfo {
	if bytes.HasPrefix(data, utf8BOM) {
		return EncodingInfo{Encoding: utf8Name, HasBOM: true}
	}
	if utf8.Valid(data) {
		return EncodingInfo{Encoding: utf8Name}
	}
	return EncodingInfo{}
}

func encodingFor(localization bool) encoding.Encoding {
	if localization {
		return unicode.UTF8BOM
	}
	return unicode.UTF8
}

func hasValidUTF8BOM(info EncodingInfo) bool {
	return strings.EqualFold(info.Encoding, utf8Name) && info.HasBOM
}
