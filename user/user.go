// Package user holds account records and the in-memory session table.
// Accounts live in a hashed map on disk; sessions do not survive a
// restart, matching the exit semantics of the command stream.
package user

import (
	"fmt"

	"RailwayDB/bplustree"
	"RailwayDB/fileconfig"
)

const (
	UsernameLen = 20
	NameLen     = 16
	MailLen     = 30
)

// Record is the fixed-size on-disk account record.
type Record struct {
	Username     [UsernameLen]byte
	PasswordHash uint64
	Name         [NameLen]byte
	Mail         [MailLen]byte
	Privilege    int32
}

func (r *Record) UsernameString() string { return cString(r.Username[:]) }
func (r *Record) NameString() string     { return cString(r.Name[:]) }
func (r *Record) MailString() string     { return cString(r.Mail[:]) }

// Profile renders the query_profile / modify_profile response line.
func (r *Record) Profile() string {
	return fmt.Sprintf("%s %s %s %d", r.UsernameString(), r.NameString(), r.MailString(), r.Privilege)
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

func putCString(dst []byte, s string) {
	n := copy(dst, s)
	for ; n < len(dst); n++ {
		dst[n] = 0
	}
}

type recordCodec struct{}

func (recordCodec) Size() int { return UsernameLen + 8 + NameLen + MailLen + 4 }

func (recordCodec) Encode(buf []byte, r Record) {
	off := copy(buf, r.Username[:])
	bplustree.Uint64Codec{}.Encode(buf[off:], r.PasswordHash)
	off += 8
	off += copy(buf[off:], r.Name[:])
	off += copy(buf[off:], r.Mail[:])
	bplustree.Int32Codec{}.Encode(buf[off:], r.Privilege)
}

func (recordCodec) Decode(buf []byte) Record {
	var r Record
	off := copy(r.Username[:], buf)
	r.PasswordHash = bplustree.Uint64Codec{}.Decode(buf[off:])
	off += 8
	off += copy(r.Name[:], buf[off:])
	off += copy(r.Mail[:], buf[off:])
	r.Privilege = bplustree.Int32Codec{}.Decode(buf[off:])
	return r
}

// Manager owns the account map, the first-user flag and the session
// set.
type Manager struct {
	accounts *bplustree.HashedSingleMap[Record]
	hasUsers *fileconfig.Value[uint8]
	online   map[uint64]bool
}

func NewManager(path string, slab *fileconfig.Slab, cacheBytes int64) (*Manager, error) {
	accounts, err := bplustree.OpenHashedSingleMap[Record](path, slab, cacheBytes, recordCodec{})
	if err != nil {
		return nil, fmt.Errorf("open account map: %w", err)
	}
	hasUsers, err := fileconfig.Bind[uint8](slab, 0)
	if err != nil {
		accounts.Close()
		return nil, err
	}
	return &Manager{accounts: accounts, hasUsers: hasUsers, online: make(map[uint64]bool)}, nil
}

// Add creates an account. The very first account gets privilege 10
// regardless of the requested value; after that the requester must be
// logged in and strictly outrank the new account's privilege, and the
// username must be fresh.
func (m *Manager) Add(requester, username, password, name, mail string, privilege int32) (bool, error) {
	if m.hasUsers.Get() != 0 {
		cur, ok, err := m.accounts.Find(requester)
		if err != nil {
			return false, err
		}
		if !ok || cur.Privilege <= privilege || !m.LoggedIn(requester) {
			return false, nil
		}
		if _, exists, err := m.accounts.Find(username); err != nil {
			return false, err
		} else if exists {
			return false, nil
		}
	} else {
		privilege = 10
	}

	var r Record
	putCString(r.Username[:], username)
	r.PasswordHash = bplustree.Hash(password)
	putCString(r.Name[:], name)
	putCString(r.Mail[:], mail)
	r.Privilege = privilege
	if err := m.accounts.Insert(username, r); err != nil {
		return false, err
	}
	m.hasUsers.Set(1)
	return true, nil
}

// Login rejects unknown users, wrong passwords and double logins.
func (m *Manager) Login(username, password string) (bool, error) {
	r, ok, err := m.accounts.Find(username)
	if err != nil {
		return false, err
	}
	if !ok || r.PasswordHash != bplustree.Hash(password) || m.LoggedIn(username) {
		return false, nil
	}
	m.online[bplustree.Hash(username)] = true
	return true, nil
}

func (m *Manager) Logout(username string) bool {
	if !m.LoggedIn(username) {
		return false
	}
	delete(m.online, bplustree.Hash(username))
	return true
}

func (m *Manager) LoggedIn(username string) bool { return m.online[bplustree.Hash(username)] }

// QueryProfile returns the target's profile line when the requester is
// logged in and is the target or strictly outranks it.
func (m *Manager) QueryProfile(requester, target string) (string, bool, error) {
	if !m.LoggedIn(requester) {
		return "", false, nil
	}
	cur, curOK, err := m.accounts.Find(requester)
	if err != nil {
		return "", false, err
	}
	tar, tarOK, err := m.accounts.Find(target)
	if err != nil {
		return "", false, err
	}
	if !curOK || !tarOK {
		return "", false, nil
	}
	if cur.Privilege <= tar.Privilege && requester != target {
		return "", false, nil
	}
	return tar.Profile(), true, nil
}

// ModifyProfile updates the optional fields (nil = leave alone) and
// returns the resulting profile line. The access rule matches
// QueryProfile; a new privilege must additionally be strictly below
// the requester's own.
func (m *Manager) ModifyProfile(requester, target string, password, name, mail *string, privilege *int32) (string, bool, error) {
	if !m.LoggedIn(requester) {
		return "", false, nil
	}
	cur, curOK, err := m.accounts.Find(requester)
	if err != nil {
		return "", false, err
	}
	tar, tarOK, err := m.accounts.Find(target)
	if err != nil {
		return "", false, err
	}
	if !curOK || !tarOK {
		return "", false, nil
	}
	if cur.Privilege <= tar.Privilege && requester != target {
		return "", false, nil
	}
	if privilege != nil {
		if *privilege >= cur.Privilege {
			return "", false, nil
		}
		tar.Privilege = *privilege
	}
	if password != nil {
		tar.PasswordHash = bplustree.Hash(*password)
	}
	if name != nil {
		putCString(tar.Name[:], *name)
	}
	if mail != nil {
		putCString(tar.Mail[:], *mail)
	}
	if err := m.accounts.Insert(target, tar); err != nil {
		return "", false, err
	}
	return tar.Profile(), true, nil
}

// Clean drops every account and session and re-arms the first-user
// rule.
func (m *Manager) Clean() error {
	m.hasUsers.Set(0)
	m.online = make(map[uint64]bool)
	return m.accounts.Clear()
}

func (m *Manager) Close() error {
	m.online = make(map[uint64]bool)
	return m.accounts.Close()
}
