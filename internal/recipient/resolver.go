/**
 * @description
 * Recipient resolution for the transfer dialog. The directory of candidate
 * contacts is fetched once when the dialog opens; each keystroke is resolved
 * synchronously against it, so there is no network round-trip per keystroke.
 */

package recipient

import (
	"errors"
	"strconv"
	"strings"

	"github.com/transfa/wallet-desk/internal/domain"
)

// MinLookupLength is the input length at which a lookup is attempted.
const MinLookupLength = 10

// ErrRecipientNotFound is the field-level error shown when no contact matches.
var ErrRecipientNotFound = errors.New("Recipient not found")

// Resolution is the recipient state of the transfer form.
type Resolution struct {
	ToContactID string
	Name        string
	Err         error
}

// Resolved reports whether a recipient has been selected.
func (r Resolution) Resolved() bool {
	return r.ToContactID != ""
}

// Resolver looks up recipients by SMS number in a pre-fetched directory.
type Resolver struct {
	bySMS map[string]domain.Contact
}

// NewResolver indexes the directory, dropping the sender's own contact and
// entries without an SMS number. The first contact wins on duplicate numbers.
func NewResolver(directory []domain.Contact, selfID int64) *Resolver {
	index := make(map[string]domain.Contact, len(directory))
	for _, c := range directory {
		if c.ID == selfID {
			continue
		}
		number := strings.TrimSpace(c.SMSNumber)
		if number == "" {
			continue
		}
		if _, exists := index[number]; !exists {
			index[number] = c
		}
	}
	return &Resolver{bySMS: index}
}

// Len returns the number of resolvable contacts.
func (r *Resolver) Len() int {
	if r == nil {
		return 0
	}
	return len(r.bySMS)
}

// Lookup resolves input against the directory. Inputs shorter than
// MinLookupLength leave current untouched.
func (r *Resolver) Lookup(input string, current Resolution) Resolution {
	number := strings.TrimSpace(input)
	if len(number) < MinLookupLength {
		return current
	}
	if r != nil {
		if c, ok := r.bySMS[number]; ok {
			return Resolution{
				ToContactID: strconv.FormatInt(c.ID, 10),
				Name:        MaskName(c.FullName()),
			}
		}
	}
	return Resolution{Err: ErrRecipientNotFound}
}
