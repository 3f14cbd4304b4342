package extraction

import (
	"bytes"
	"math"
	"strings"
)

// Supported document formats. Anything else is an extraction failure.
const (
	formatPDF  = "pdf"
	formatPNG  = "png"
	formatJPEG = "jpeg"
	formatText = "text"
)

// minTextRatio is the floor below which a "text" document is considered
// corrupt rather than textual.
const minTextRatio = 0.6

// suspectTokens are markers that show up in known fraud templates:
// editor artifacts and placeholder text that legitimate scans never carry.
var suspectTokens = [][]byte{
	[]byte("lorem ipsum"),
	[]byte("sample only"),
	[]byte("not a valid document"),
	[]byte("specimen"),
	[]byte("/TouchUp_TextEdit"),
}

var (
	pdfMagic  = []byte("%PDF-")
	pngMagic  = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
)

// sniffFormat identifies the document format from magic bytes, falling
// back to "text" when the content is predominantly printable.
func sniffFormat(content []byte) (string, bool) {
	switch {
	case bytes.HasPrefix(content, pdfMagic):
		return formatPDF, true
	case bytes.HasPrefix(content, pngMagic):
		return formatPNG, true
	case bytes.HasPrefix(content, jpegMagic):
		return formatJPEG, true
	}
	if ratio, _ := textStats(content); ratio >= minTextRatio {
		return formatText, true
	}
	return "", false
}

// metadataConsistent checks the declared MIME type against the sniffed
// format. An empty declaration is treated as consistent: absence of
// metadata is not a contradiction.
func metadataConsistent(declared, sniffed string) bool {
	if declared == "" {
		return true
	}
	declared = strings.ToLower(declared)
	switch sniffed {
	case formatPDF:
		return strings.Contains(declared, "pdf")
	case formatPNG:
		return strings.Contains(declared, "png")
	case formatJPEG:
		return strings.Contains(declared, "jpeg") || strings.Contains(declared, "jpg")
	case formatText:
		return strings.HasPrefix(declared, "text/")
	}
	return false
}

// textStats returns the printable-byte ratio and line count.
func textStats(content []byte) (float64, int) {
	if len(content) == 0 {
		return 0, 0
	}
	printable := 0
	lines := 1
	for _, b := range content {
		if b == '\n' {
			lines++
		}
		if b == '\t' || b == '\n' || b == '\r' || (b >= 0x20 && b < 0x7F) {
			printable++
		}
	}
	return roundSignal(float64(printable) / float64(len(content))), lines
}

// shannonEntropy computes byte-distribution entropy in bits. Encrypted or
// resaved content scores near 8; plain scans sit well below.
func shannonEntropy(content []byte) float64 {
	if len(content) == 0 {
		return 0
	}
	var counts [256]int
	for _, b := range content {
		counts[b]++
	}
	total := float64(len(content))
	entropy := 0.0
	for _, count := range counts {
		if count == 0 {
			continue
		}
		p := float64(count) / total
		entropy -= p * math.Log2(p)
	}
	return roundSignal(entropy)
}

func countSuspectTokens(content []byte) int {
	lowered := bytes.ToLower(content)
	hits := 0
	for _, token := range suspectTokens {
		hits += bytes.Count(lowered, bytes.ToLower(token))
	}
	return hits
}

func pdfHasTrailer(content []byte) bool {
	tail := content
	if len(tail) > 1024 {
		tail = tail[len(tail)-1024:]
	}
	return bytes.Contains(tail, []byte("%%EOF"))
}

// roundSignal fixes float signals to six decimals so extraction stays
// byte-for-byte reproducible across runs.
func roundSignal(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
