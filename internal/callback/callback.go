// Package callback builds and parses the button payload addresses handed
// to the chat transport. Payloads are ASCII "prefix:action:data" strings
// capped at 64 bytes, so book titles travel as catalog tokens rather than
// raw text.
package callback

import (
	"strings"

	"github.com/okunev/bookshelf-bot/internal/catalog"
)

// MaxPayloadSize is the transport's hard ceiling on payload bytes.
const MaxPayloadSize = 64

// Payload prefixes. One per action family; all distinct, and the colon
// delimiter keeps parsing unambiguous.
const (
	PrefixBook     = "book"
	PrefixDownload = "download"
	PrefixEditBook = "edit_book"
	PrefixDelBook  = "del_book"

	PrefixUser     = "user"
	PrefixUserBan  = "user_ban"
	PrefixUserFree = "user_unban"

	PrefixAdmin      = "admin"
	PrefixAdminStats = "admin_stats"

	PrefixBack        = "back"
	PrefixBackToBooks = "back_to_books"
	PrefixNextPage    = "next"
	PrefixPrevPage    = "prev"
)

// Payload actions.
const (
	ActionShow     = "show"
	ActionEdit     = "edit"
	ActionDelete   = "delete"
	ActionDownload = "download"
	ActionConfirm  = "confirm"
	ActionCancel   = "cancel"
)

// Payload is a parsed button payload.
type Payload struct {
	Prefix string
	Action string
	Data   string
}

// Build assembles "prefix:action:data". Data that would push the payload
// past MaxPayloadSize is truncated, keeping the prefix and action intact;
// callers embedding titles should pass a token instead (see BookSelect).
func Build(prefix, action, data string) string {
	head := prefix + ":" + action + ":"
	if len(head)+len(data) > MaxPayloadSize {
		data = data[:MaxPayloadSize-len(head)]
		data = strings.TrimRight(data, ":")
	}
	return head + data
}

// Parse splits a payload back into its components. Payloads without the
// three-part shape report ok=false.
func Parse(payload string) (Payload, bool) {
	parts := strings.SplitN(payload, ":", 3)
	if len(parts) != 3 {
		return Payload{}, false
	}
	return Payload{Prefix: parts[0], Action: parts[1], Data: parts[2]}, true
}

// BookSelect addresses a catalog entry: the title is swapped for its token
// so arbitrarily long Unicode titles fit the cap.
func BookSelect(title string) string {
	return Build(PrefixBook, ActionShow, catalog.EncodeTitle(title))
}

// BookDownload addresses one format of a catalog entry.
func BookDownload(title string, format catalog.Format) string {
	return Build(PrefixDownload, ActionDownload,
		catalog.EncodeTitle(title)+":"+string(format))
}

// DownloadTarget splits the data part of a download payload into token and
// format.
func DownloadTarget(data string) (token string, format catalog.Format, ok bool) {
	parts := strings.SplitN(data, ":", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	format, ok = catalog.ParseFormat(parts[1])
	if !ok {
		return "", "", false
	}
	return parts[0], format, true
}
