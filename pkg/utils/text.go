package utils

import (
	"fmt"
	"strings"
)

// ExtractExcerpt returns the first n words of content, suffixed with an
// ellipsis when content was truncated. Content at or under the limit is
// returned verbatim.
func ExtractExcerpt(content string, words int) string {
	wordList := strings.Fields(content)
	if len(wordList) <= words {
		return content
	}
	return strings.Join(wordList[:words], " ") + "..."
}

// CreateBookmarkURL builds the shareable bookmark link for a memory space.
func CreateBookmarkURL(baseURL, spaceID, token string) string {
	return fmt.Sprintf("%s/space/%s?token=%s", strings.TrimRight(baseURL, "/"), spaceID, token)
}

// EmailLocalPart returns the part of an email address before the '@',
// used as a default display name for implicitly created members.
func EmailLocalPart(email string) string {
	if i := strings.Index(email, "@"); i > 0 {
		return email[:i]
	}
	return email
}
