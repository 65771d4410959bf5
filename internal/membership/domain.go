// internal/membership/domain.go
package membership

import (
	"fmt"
	"strings"
)

// Member represents a library member. Two members with the same last and
// first name are the same member, whatever their email.
type Member struct {
	LastName  string `json:"last_name"`
	FirstName string `json:"first_name"`
	Email     string `json:"email,omitempty"`
}

// Equal compares members by identity key.
func (m *Member) Equal(other *Member) bool {
	if m == nil || other == nil {
		return m == other
	}
	return m.LastName == other.LastName && m.FirstName == other.FirstName
}

// Key returns the identity key used to reference the member from loan records.
func (m *Member) Key() string {
	return Key(m.LastName, m.FirstName)
}

// Key builds an identity key from its two parts.
func Key(lastName, firstName string) string {
	return lastName + "_" + firstName
}

func (m *Member) String() string {
	if m.Email != "" {
		return fmt.Sprintf("%s %s (%s)", m.FirstName, m.LastName, m.Email)
	}
	return m.FirstName + " " + m.LastName
}

// EncodeLine renders a member as lastName,firstName,email.
func EncodeLine(m *Member) string {
	return strings.Join([]string{m.LastName, m.FirstName, m.Email}, ",")
}

// DecodeLine parses a member line. The email field is optional.
func DecodeLine(line string) (*Member, error) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) < 2 {
		return nil, fmt.Errorf("member line %q: not enough fields", line)
	}
	m := &Member{LastName: parts[0], FirstName: parts[1]}
	if len(parts) > 2 {
		m.Email = parts[2]
	}
	return m, nil
}
