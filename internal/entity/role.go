package entity

import "github.com/questx-lab/chatsync/pkg/enum"

type Role string

var (
	RoleMember    = enum.New(Role("member"))
	RoleModerator = enum.New(Role("moderator"))
	RoleAdmin     = enum.New(Role("admin"))
	RoleOwner     = enum.New(Role("owner"))
)

// Rank orders roles by authority: owner > admin > moderator > member. Unknown
// roles rank below member.
func (r Role) Rank() int {
	switch r {
	case RoleOwner:
		return 4
	case RoleAdmin:
		return 3
	case RoleModerator:
		return 2
	case RoleMember:
		return 1
	}

	return 0
}

func (r Role) AtLeast(other Role) bool {
	return r.Rank() >= other.Rank()
}
