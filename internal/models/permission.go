package models

import "github.com/google/uuid"

// AnyObject matches every object of a model in a grant.
const AnyObject = "*"

type SubjectKind string

const (
	SubjectUser  SubjectKind = "user"
	SubjectGroup SubjectKind = "group"
)

// PermissionGrant assigns a capability string such as "dcim.add_device" to a
// user or group, for one object or for AnyObject.
type PermissionGrant struct {
	ID          uuid.UUID   `json:"id"`
	SubjectKind SubjectKind `json:"subject_kind"`
	Subject     string      `json:"subject"`
	Capability  string      `json:"capability"`
	ObjectID    string      `json:"object_id"`
}

// SubjectKey is the policy subject, e.g. "user:alice" or "group:netops".
func (g PermissionGrant) SubjectKey() string {
	return SubjectKeyFor(g.SubjectKind, g.Subject)
}

func SubjectKeyFor(kind SubjectKind, name string) string {
	return string(kind) + ":" + name
}

// ObjectRef identifies an object for object-level permission checks.
type ObjectRef struct {
	AppLabel  string
	ModelName string
	ID        string
}
