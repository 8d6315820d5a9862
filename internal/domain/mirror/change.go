package mirror

// Decision is the outcome of comparing one remote record to the local snapshot.
type Decision int

const (
	DecisionUnchanged Decision = iota
	DecisionUpdate
	DecisionCreate
)

func (d Decision) String() string {
	switch d {
	case DecisionUnchanged:
		return "unchanged"
	case DecisionUpdate:
		return "update"
	case DecisionCreate:
		return "create"
	default:
		return "unknown"
	}
}

// Classify decides create/update/skip from the stored updated_at (if any) and the remote one.
func Classify(localUpdatedAt string, found bool, remoteUpdatedAt string) Decision {
	if !found {
		return DecisionCreate
	}
	if SameTimestamp(localUpdatedAt, remoteUpdatedAt) {
		return DecisionUnchanged
	}
	return DecisionUpdate
}

// ShouldNotify reports whether an issue changed strictly after the follower started
// following. An empty followedSince disables notifications.
func ShouldNotify(createdAt string, updatedAt string, followedSince string) (bool, error) {
	if followedSince == "" {
		return false, nil
	}
	since, err := ParseTimestamp(followedSince)
	if err != nil {
		return false, err
	}
	created, err := ParseTimestamp(createdAt)
	if err != nil {
		return false, err
	}
	updated, err := ParseTimestamp(updatedAt)
	if err != nil {
		return false, err
	}
	return created.After(since) || updated.After(since), nil
}

// ChangeType tags a history record.
type ChangeType string

const (
	ChangeCreated ChangeType = "created"
	ChangeChanged ChangeType = "changed"
	ChangeDeleted ChangeType = "deleted"
)

// EntityKind names a mirrored resource.
type EntityKind string

const (
	KindRepository EntityKind = "repository"
	KindIssue      EntityKind = "issue"
	KindComment    EntityKind = "comment"
)
