package cbforest

import (
	"fmt"
	"log/slog"
)

// DescribeOpenTransaction reports the file's transaction slot for
// debugging hung writers.
func (db *Database) DescribeOpenTransaction() string {
	f := db.file
	f.mu.Lock()
	t := f.transaction
	f.mu.Unlock()
	if t == nil {
		return "NO OPEN TRANSACTION"
	}
	return fmt.Sprintf("open transaction on %s: startSeq=%d state=%d", f.path, t.startSequence, t.state)
}

func hexAttr(key string, b []byte) slog.Attr {
	return slog.String(key, hexstr(b))
}

// DumpDocument formats a document for logs.
func DumpDocument(doc *Document) string {
	if doc == nil {
		return "<nil>"
	}
	return fmt.Sprintf("doc key=%q seq=%d off=%d deleted=%v meta=%s body=(%d bytes)",
		doc.Key(), doc.Sequence, doc.Offset, doc.Deleted, hexstr(doc.Meta()), len(doc.Body()))
}
