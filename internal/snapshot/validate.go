package snapshot

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"trackmystacks/internal/core"
)

const maxDescriptionLen = 255

// Validate reports the first structural problem in d, wrapped in
// ErrMalformedDocument. Expenses naming a user that is not in the document
// are valid here; import skips them.
func (d *Document) Validate() error {
	if d == nil {
		return malformed("empty document")
	}
	if err := checkVersion(d.Version); err != nil {
		return err
	}

	seenUsers := make(map[string]int, len(d.Users))
	for i, u := range d.Users {
		switch {
		case strings.TrimSpace(u.Username) == "":
			return malformed("users[%d]: missing username", i)
		case strings.TrimSpace(u.Email) == "":
			return malformed("users[%d] %q: missing email", i, u.Username)
		case u.PasswordHash == "":
			return malformed("users[%d] %q: missing password hash", i, u.Username)
		}
		key := normalizeUsername(u.Username)
		if first, dup := seenUsers[key]; dup {
			return malformed("users[%d]: username %q duplicates users[%d]", i, u.Username, first)
		}
		seenUsers[key] = i
	}

	seenCategories := make(map[string]int, len(d.Categories))
	for i, c := range d.Categories {
		if strings.TrimSpace(c.Name) == "" {
			return malformed("categories[%d]: missing name", i)
		}
		key := norm.NFC.String(c.Name)
		if first, dup := seenCategories[key]; dup {
			return malformed("categories[%d]: name %q duplicates categories[%d]", i, c.Name, first)
		}
		seenCategories[key] = i
	}

	for i, e := range d.Expenses {
		if err := checkExpense(i, e.Amount != nil, e.Category, e.Description, e.Date); err != nil {
			return err
		}
	}
	return nil
}

// Validate reports the first structural problem in d. Unlike the full
// document, a per-user document must carry an expenses list; an explicit
// empty list is valid and clears the user's expenses on import.
func (d *UserDocument) Validate() error {
	if d == nil {
		return malformed("empty document")
	}
	if err := checkVersion(d.Version); err != nil {
		return err
	}
	if d.Expenses == nil {
		return malformed("missing expenses list")
	}
	for i, e := range d.Expenses {
		if err := checkExpense(i, e.Amount != nil, e.Category, e.Description, e.Date); err != nil {
			return err
		}
	}
	return nil
}

// Any 1.x document is readable.
func checkVersion(v string) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return malformed("missing version")
	}
	major, _, _ := strings.Cut(v, ".")
	if major != "1" {
		return malformed("unsupported version %q", v)
	}
	return nil
}

func checkExpense(i int, hasAmount bool, category, description string, date core.Date) error {
	switch {
	case !hasAmount:
		return malformed("expenses[%d]: missing amount", i)
	case date.IsZero():
		return malformed("expenses[%d]: missing date", i)
	case strings.TrimSpace(category) == "":
		return malformed("expenses[%d]: missing category", i)
	case len(description) > maxDescriptionLen:
		return malformed("expenses[%d]: description longer than %d bytes", i, maxDescriptionLen)
	}
	return nil
}

// normalizeUsername folds canonically equivalent spellings of a username
// onto one key.
func normalizeUsername(s string) string {
	return norm.NFC.String(s)
}
