package directory

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/HammerMeetNail/tokengate/internal/config"
	"github.com/HammerMeetNail/tokengate/internal/logging"
	"github.com/HammerMeetNail/tokengate/internal/models"
)

// UserSyncer mirrors directory attributes onto the local user store.
type UserSyncer interface {
	SyncDirectoryAttributes(ctx context.Context, username string, attrs models.DirectoryAttributes) (*models.User, error)
}

type searcher interface {
	Bind(username, password string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
}

type dialFunc func(cfg config.LDAPConfig) (searcher, func(), error)

// LDAPProvider resolves users against an LDAP directory.
type LDAPProvider struct {
	cfg    config.LDAPConfig
	users  UserSyncer
	dial   dialFunc
	logger *logging.Logger
}

func NewLDAPProvider(cfg config.LDAPConfig, users UserSyncer, logger *logging.Logger) *LDAPProvider {
	if logger == nil {
		logger = logging.Default
	}
	return &LDAPProvider{
		cfg:    cfg,
		users:  users,
		dial:   dialLDAP,
		logger: logger.Named("directory"),
	}
}

func dialLDAP(cfg config.LDAPConfig) (searcher, func(), error) {
	conn, err := ldap.DialURL(cfg.ServerURI, ldap.DialWithDialer(&net.Dialer{Timeout: cfg.Timeout}))
	if err != nil {
		return nil, nil, fmt.Errorf("dialing directory: %w", err)
	}
	closer := func() { conn.Close() }

	if cfg.StartTLS {
		tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
		if u, err := url.Parse(cfg.ServerURI); err == nil {
			tlsConfig.ServerName = u.Hostname()
		}
		if err := conn.StartTLS(tlsConfig); err != nil {
			closer()
			return nil, nil, fmt.Errorf("starting TLS: %w", err)
		}
	}
	if cfg.Timeout > 0 {
		conn.SetTimeout(cfg.Timeout)
	}
	return conn, closer, nil
}

// Lookup finds username in the directory. No match returns (nil, nil).
func (p *LDAPProvider) Lookup(ctx context.Context, username string) (*models.User, error) {
	conn, closeConn, err := p.dial(p.cfg)
	if err != nil {
		return nil, err
	}
	defer closeConn()

	if p.cfg.BindDN != "" {
		if err := conn.Bind(p.cfg.BindDN, p.cfg.BindPassword); err != nil {
			return nil, fmt.Errorf("binding service account: %w", err)
		}
	}

	entry, err := p.findUser(conn, username)
	if err != nil || entry == nil {
		return nil, err
	}

	user, err := p.users.SyncDirectoryAttributes(ctx, username, models.DirectoryAttributes{
		Email:     entry.GetAttributeValue("mail"),
		FirstName: entry.GetAttributeValue("givenName"),
		LastName:  entry.GetAttributeValue("sn"),
	})
	if err != nil {
		return nil, err
	}

	groups, err := p.findGroups(conn, entry.DN)
	if err != nil {
		return nil, err
	}
	user.Groups = groups

	p.logger.Debug("Directory user resolved", map[string]interface{}{
		"username": username,
		"groups":   len(groups),
	})
	return user, nil
}

func (p *LDAPProvider) findUser(conn searcher, username string) (*ldap.Entry, error) {
	req := ldap.NewSearchRequest(
		p.cfg.UserSearchBase,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 2, p.timeLimit(), false,
		fmt.Sprintf("(%s=%s)", p.cfg.UserSearchAttr, ldap.EscapeFilter(username)),
		[]string{"dn", "mail", "givenName", "sn"},
		nil,
	)
	res, err := conn.Search(req)
	if err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
			return nil, nil
		}
		return nil, fmt.Errorf("searching users: %w", err)
	}
	switch len(res.Entries) {
	case 0:
		return nil, nil
	case 1:
		return res.Entries[0], nil
	default:
		return nil, errors.New("directory returned more than one user")
	}
}

func (p *LDAPProvider) findGroups(conn searcher, userDN string) ([]string, error) {
	groups := []string{}
	if p.cfg.GroupSearchBase == "" {
		return groups, nil
	}

	req := ldap.NewSearchRequest(
		p.cfg.GroupSearchBase,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, p.timeLimit(), false,
		fmt.Sprintf("(&(objectClass=%s)(member=%s))", ldap.EscapeFilter(p.cfg.GroupClass), ldap.EscapeFilter(userDN)),
		[]string{"cn"},
		nil,
	)
	res, err := conn.Search(req)
	if err != nil {
		return nil, fmt.Errorf("searching groups: %w", err)
	}
	for _, e := range res.Entries {
		if cn := e.GetAttributeValue("cn"); cn != "" {
			groups = append(groups, cn)
		}
	}
	return groups, nil
}

func (p *LDAPProvider) timeLimit() int {
	return int(p.cfg.Timeout / time.Second)
}
