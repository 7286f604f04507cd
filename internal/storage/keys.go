package storage

import "fmt"

// Key layout mirrors the per-document/per-page prefix convention:
//
//	documents/{docID}/source.pdf
//	documents/{docID}/cover.png
//	documents/{docID}/pages/{n}/page-{n}.pdf
//	documents/{docID}/pages/{n}/page-{n}-bbox.png
//	documents/{docID}/pages/{n}/images/{imageID}.png

// SourcePDFKey returns the key for a document's original PDF.
func SourcePDFKey(docID string) string {
	return fmt.Sprintf("documents/%s/source.pdf", docID)
}

// ThumbnailKey returns the key for a document's cover thumbnail.
func ThumbnailKey(docID string) string {
	return fmt.Sprintf("documents/%s/cover.png", docID)
}

// DocumentPrefix returns the storage prefix owned by a document.
func DocumentPrefix(docID string) string {
	return fmt.Sprintf("documents/%s", docID)
}

// PagePDFKey returns the key for a page's single-page PDF.
func PagePDFKey(docID string, pageNum int) string {
	return fmt.Sprintf("documents/%s/pages/%d/page-%d.pdf", docID, pageNum, pageNum)
}

// PageOverlayKey returns the key for a page's bounding-box debug overlay.
func PageOverlayKey(docID string, pageNum int) string {
	return fmt.Sprintf("documents/%s/pages/%d/page-%d-bbox.png", docID, pageNum, pageNum)
}

// ExtractedImageKey returns the key for one extracted image region.
func ExtractedImageKey(docID string, pageNum int, imageID string) string {
	return fmt.Sprintf("documents/%s/pages/%d/images/%s.png", docID, pageNum, imageID)
}
