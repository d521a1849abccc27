package services

import (
	"context"
	"fmt"

	"github.com/HammerMeetNail/tokengate/internal/models"
)

type GrantService struct {
	db DBConn
}

func NewGrantService(db DBConn) *GrantService {
	return &GrantService{db: db}
}

// ListGrants returns every capability grant, with user grants resolved to
// usernames.
func (s *GrantService) ListGrants(ctx context.Context) ([]models.PermissionGrant, error) {
	rows, err := s.db.Query(ctx,
		`SELECT g.id, COALESCE(u.username, ''), COALESCE(g.group_name, ''), g.capability, g.object_id
		 FROM permission_grants g
		 LEFT JOIN users u ON u.id = g.user_id
		 ORDER BY g.capability`)
	if err != nil {
		return nil, fmt.Errorf("querying permission grants: %w", err)
	}
	defer rows.Close()

	var grants []models.PermissionGrant
	for rows.Next() {
		var (
			g                   models.PermissionGrant
			username, groupName string
		)
		if err := rows.Scan(&g.ID, &username, &groupName, &g.Capability, &g.ObjectID); err != nil {
			return nil, fmt.Errorf("scanning permission grant: %w", err)
		}
		switch {
		case username != "":
			g.SubjectKind, g.Subject = models.SubjectUser, username
		case groupName != "":
			g.SubjectKind, g.Subject = models.SubjectGroup, groupName
		default:
			continue
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating permission grants: %w", err)
	}

	return grants, nil
}
