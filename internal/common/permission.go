package common

import (
	"github.com/questx-lab/chatsync/internal/entity"
	"github.com/questx-lab/chatsync/pkg/errorx"
)

type PermissionFlag uint64

const (
	SendMessage PermissionFlag = 1 << iota
	DeleteOwnMessage
	PinMessage
	DeleteAnyMessage
	MuteMember
	WarnMember
	KickMember
	AssignRole
	AddMember
	UpdateRateLimits
	UpdateChannel
	ArchiveChannel
	DeleteChannel
)

const (
	memberPermissions    = SendMessage | DeleteOwnMessage | PinMessage
	moderatorPermissions = memberPermissions | DeleteAnyMessage | MuteMember | WarnMember | KickMember
	adminPermissions     = moderatorPermissions | AssignRole | AddMember | UpdateRateLimits |
		UpdateChannel | ArchiveChannel
	ownerPermissions = adminPermissions | DeleteChannel
)

// RolePermissions is the single table consulted by every role check, on the
// client as a UX guard and in the store as the authority.
var RolePermissions = map[entity.Role]PermissionFlag{
	entity.RoleMember:    memberPermissions,
	entity.RoleModerator: moderatorPermissions,
	entity.RoleAdmin:     adminPermissions,
	entity.RoleOwner:     ownerPermissions,
}

var permissionNames = map[PermissionFlag]string{
	SendMessage:      "send messages",
	DeleteOwnMessage: "delete own messages",
	PinMessage:       "pin messages",
	DeleteAnyMessage: "delete messages of other members",
	MuteMember:       "mute members",
	WarnMember:       "warn members",
	KickMember:       "kick members",
	AssignRole:       "assign roles",
	AddMember:        "add members",
	UpdateRateLimits: "update rate limits",
	UpdateChannel:    "update the channel",
	ArchiveChannel:   "archive the channel",
	DeleteChannel:    "delete the channel",
}

func (f PermissionFlag) String() string {
	if name, ok := permissionNames[f]; ok {
		return name
	}

	return "perform this action"
}

func Can(role entity.Role, action PermissionFlag) bool {
	return RolePermissions[role]&action == action
}

// Verify returns a PermissionDenied error if role cannot perform action.
func Verify(role entity.Role, action PermissionFlag) error {
	if !Can(role, action) {
		return errorx.New(errorx.PermissionDenied, "Your role cannot %s", action)
	}

	return nil
}

// CanAssignRole checks whether actor may change the role of a member
// currently holding target to newRole. Owners may assign any role except
// owner. Admins may only assign moderator or member, and only to members
// ranked below admin. Moderators cannot assign roles.
func CanAssignRole(actor, target, newRole entity.Role) error {
	if newRole.Rank() == 0 {
		return errorx.New(errorx.BadRequest, "Invalid role %s", newRole)
	}

	if err := Verify(actor, AssignRole); err != nil {
		return err
	}

	if newRole == entity.RoleOwner {
		return errorx.New(errorx.PermissionDenied, "Ownership cannot be granted by role assignment")
	}

	if target == entity.RoleOwner {
		return errorx.New(errorx.PermissionDenied, "The owner's role cannot be changed")
	}

	if actor == entity.RoleOwner {
		return nil
	}

	if newRole.Rank() >= actor.Rank() {
		return errorx.New(errorx.PermissionDenied, "Your role cannot assign %s", newRole)
	}

	if target.Rank() >= actor.Rank() {
		return errorx.New(errorx.PermissionDenied, "Your role cannot change the role of a %s", target)
	}

	return nil
}

// CanKick requires actor to be at least moderator and target to rank
// strictly lower than actor.
func CanKick(actor, target entity.Role) error {
	if err := Verify(actor, KickMember); err != nil {
		return err
	}

	if target.Rank() >= actor.Rank() {
		return errorx.New(errorx.PermissionDenied, "Your role cannot kick a %s", target)
	}

	return nil
}

// CanModerate applies the kick hierarchy to mute and warn actions.
func CanModerate(actor, target entity.Role, action PermissionFlag) error {
	if err := Verify(actor, action); err != nil {
		return err
	}

	if target.Rank() >= actor.Rank() {
		return errorx.New(errorx.PermissionDenied, "A %s cannot be moderated by a %s", target, actor)
	}

	return nil
}
