package messaging

import "github.com/ajbunielteam/SysGranTES/internal/model"

// UnreadCount counts confirmed messages from the other role that tracker
// has not seen. Outgoing messages never count.
func UnreadCount(thread *model.Thread, viewer model.Role, tracker *ReadTracker) int {
	if thread == nil {
		return 0
	}
	n := 0
	for _, e := range thread.Entries {
		if e.State == model.EntryConfirmed && e.From != viewer && !tracker.IsRead(ReadKey(e.Message)) {
			n++
		}
	}
	return n
}

// Annotate fills in the per-entry read flags and the thread's unread total
// from viewer's point of view.
func Annotate(thread *model.Thread, viewer model.Role, tracker *ReadTracker) {
	if thread == nil {
		return
	}
	for i := range thread.Entries {
		e := &thread.Entries[i]
		if e.From == viewer {
			e.Read = true
			continue
		}
		e.Read = tracker.IsRead(ReadKey(e.Message))
	}
	thread.Unread = UnreadCount(thread, viewer, tracker)
}
