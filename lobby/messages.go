package lobby

// This file contains the IPC message types the lobby knows about, and
// functions building the bodies of the messages it sends.

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"

	tnet "badc0de.net/pkg/go-lobby/net"
)

// IPC message types sent by the client.
const (
	IPCReqCharList       uint16 = 0x03
	IPCReqEnterWorld     uint16 = 0x04
	IPCClientVersionInfo uint16 = 0x05
	IPCReqCharDelete     uint16 = 0x0a
	IPCReqCharCreate     uint16 = 0x0b
)

// IPC message types sent by the server.
const (
	IPCServiceIDInfo uint16 = 0x0c
)

var ipcTypeNames = map[uint16]string{
	IPCReqCharList:       "ReqCharList",
	IPCReqEnterWorld:     "ReqEnterWorld",
	IPCClientVersionInfo: "ClientVersionInfo",
	IPCReqCharDelete:     "ReqCharDelete",
	IPCReqCharCreate:     "ReqCharCreate",
}

// IPCTypeName returns the name of a known IPC message type, or its number in
// hex.
func IPCTypeName(t uint16) string {
	if n, ok := ipcTypeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("0x%04x", t)
}

// DefaultServiceAccountName is the name of the only service account the
// lobby offers unless configured otherwise.
const DefaultServiceAccountName = "FINAL FANTASY XIV"

const (
	// MaxServiceAccounts is how many accounts fit in a ServiceIDInfo.
	MaxServiceAccounts = 8

	serviceAccountNameSize = 0x44
)

// ServiceAccount is one entry of the service account list.
type ServiceAccount struct {
	ID      uint32
	Unknown uint32
	Index   uint32
	Name    [serviceAccountNameSize]byte
}

// DisplayName returns the account name up to its terminating NUL.
func (a ServiceAccount) DisplayName() string {
	if i := bytes.IndexByte(a.Name[:], 0); i >= 0 {
		return string(a.Name[:i])
	}
	return string(a.Name[:])
}

// ServiceIDInfo is the body of the IPCServiceIDInfo message: the list of
// service accounts the client may log in with.
type ServiceIDInfo struct {
	Seq         uint64
	Padding     uint8
	NumAccounts uint8
	U1          uint8
	U2          uint8
	Padding1    uint8
	Accounts    [MaxServiceAccounts]ServiceAccount
}

// NewServiceIDInfo returns an empty list with the fixed fields set the way
// the client expects.
func NewServiceIDInfo() *ServiceIDInfo {
	return &ServiceIDInfo{
		Seq: 1,
		U1:  3,
		U2:  0x99,
	}
}

// AddServiceAccount appends an account, giving it the next free index.
func (info *ServiceIDInfo) AddServiceAccount(id uint32, name string) error {
	if int(info.NumAccounts) >= MaxServiceAccounts {
		return errors.Errorf("service account list full (%d)", MaxServiceAccounts)
	}
	if len(name) >= serviceAccountNameSize {
		return errors.Errorf("service account name %q longer than %d bytes", name, serviceAccountNameSize-1)
	}

	idx := info.NumAccounts
	acc := ServiceAccount{ID: id, Index: uint32(idx)}
	copy(acc.Name[:], name)
	info.Accounts[idx] = acc
	info.NumAccounts++
	return nil
}

// ReadServiceIDInfo decodes a ServiceIDInfo body.
func ReadServiceIDInfo(r io.Reader) (*ServiceIDInfo, error) {
	info := &ServiceIDInfo{}
	if err := binary.Read(r, binary.LittleEndian, info); err != nil {
		return nil, errors.Wrap(err, "reading service id info")
	}
	if int(info.NumAccounts) > MaxServiceAccounts {
		return nil, errors.Errorf("service id info lists %d accounts", info.NumAccounts)
	}
	return info, nil
}

// ServiceAccountList writes a ServiceIDInfo body listing the passed account
// names, in order, to w.
func ServiceAccountList(w io.Writer, names ...string) error {
	info := NewServiceIDInfo()
	for _, name := range names {
		if err := info.AddServiceAccount(0, name); err != nil {
			return err
		}
	}
	return binary.Write(w, binary.LittleEndian, info)
}

// VersionInfoHandler answers the client's version report with a service
// account list holding a single account with the passed name.
func VersionInfoHandler(accountName string) HandlerFunc {
	return func(s *Session, msg *tnet.IPCMessage) (*Reply, error) {
		buf := &bytes.Buffer{}
		if err := ServiceAccountList(buf, accountName); err != nil {
			return nil, err
		}
		return &Reply{Type: IPCServiceIDInfo, Data: buf.Bytes()}, nil
	}
}
