// access описывает права ролей и проверку набора прав.
package access

import "github.com/pribylovaa/auth-tokens/internal/models"

// Capability — именованное право, которое может требовать маршрут.
type Capability string

const (
	CapGetUsers    Capability = "getUsers"
	CapManageUsers Capability = "manageUsers"
)

// Grants — отображение роли в набор прав. Неизменяемо после создания.
type Grants struct {
	byRole map[models.Role]map[Capability]struct{}
}

// NewGrants строит таблицу прав; входная карта копируется.
func NewGrants(table map[models.Role][]Capability) *Grants {
	g := &Grants{byRole: make(map[models.Role]map[Capability]struct{}, len(table))}

	for role, caps := range table {
		set := make(map[Capability]struct{}, len(caps))
		for _, c := range caps {
			set[c] = struct{}{}
		}
		g.byRole[role] = set
	}

	return g
}

// DefaultGrants: admin управляет пользователями, у user прав нет.
func DefaultGrants() *Grants {
	return NewGrants(map[models.Role][]Capability{
		models.RoleUser:  {},
		models.RoleAdmin: {CapGetUsers, CapManageUsers},
	})
}

// Allows сообщает, есть ли у роли все перечисленные права.
// Пустой список прав разрешён любой роли; неизвестная роль прав не имеет.
func (g *Grants) Allows(role models.Role, caps ...Capability) bool {
	if len(caps) == 0 {
		return true
	}

	set, ok := g.byRole[role]
	if !ok {
		return false
	}

	for _, c := range caps {
		if _, ok := set[c]; !ok {
			return false
		}
	}

	return true
}

// Capabilities возвращает права роли (порядок не гарантирован).
func (g *Grants) Capabilities(role models.Role) []Capability {
	set := g.byRole[role]
	out := make([]Capability, 0, len(set))
	for c := range set {
		out = append(out, c)
	}

	return out
}
