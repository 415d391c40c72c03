package messaging

import (
	"strconv"
	"strings"
	"time"

	"github.com/ajbunielteam/SysGranTES/internal/model"
)

// timestampLayout is fixed-width so keys sort and compare the same way
// regardless of which query produced the copy.
const timestampLayout = "2006-01-02T15:04:05.000000Z07:00"

func keyTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// DedupKey identifies one logical message inside a thread merge:
// createdAt, trimmed content, both ids and the direction tag.
func DedupKey(m model.Message) string {
	var b strings.Builder
	b.WriteString(keyTimestamp(m.CreatedAt))
	b.WriteByte('|')
	b.WriteString(strings.TrimSpace(m.Content))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(m.SenderID))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(m.ReceiverID))
	b.WriteByte('|')
	b.WriteString(string(m.SenderType))
	b.WriteByte('>')
	b.WriteString(string(m.ReceiverType))
	return b.String()
}

// ReadKey is the read-map key: timestamp_content_studentId. The student id
// is taken from whichever side is the student, so both directions' copies
// of a message produce the same key.
func ReadKey(m model.Message) string {
	return keyTimestamp(m.CreatedAt) + "_" + strings.TrimSpace(m.Content) + "_" + strconv.Itoa(m.StudentID())
}
