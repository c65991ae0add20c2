// Copyright 2025 Velda Inc
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build windows

package ntfs

import (
	"errors"
	"io/fs"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	fsctlSetReparsePoint    = 0x000900A4
	fsctlGetReparsePoint    = 0x000900A8
	fsctlDeleteReparsePoint = 0x000900AC

	fileEaInformation    = 7 // FILE_INFORMATION_CLASS
	fileBasicInfo        = 0 // FILE_INFO_BY_HANDLE_CLASS
	fileAttributeTagInfo = 9
)

var (
	modntdll          = windows.NewLazySystemDLL("ntdll.dll")
	procNtQueryEaFile = modntdll.NewProc("NtQueryEaFile")
	procNtSetEaFile   = modntdll.NewProc("NtSetEaFile")
)

type fileEaInfo struct {
	EaSize uint32
}

type fileBasicInfoBuf struct {
	CreationTime   int64
	LastAccessTime int64
	LastWriteTime  int64
	ChangeTime     int64
	FileAttributes uint32
	_              uint32
}

type fileAttributeTagInfoBuf struct {
	FileAttributes uint32
	ReparseTag     uint32
}

type osOpener struct{}

// NewOpener returns the Win32 backend.
func NewOpener() Opener {
	return osOpener{}
}

func (osOpener) Open(path string, writable bool) (Handle, error) {
	name, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, &OpError{Op: "open", Path: path, Err: err}
	}
	// GENERIC_READ and GENERIC_WRITE include FILE_READ_EA and FILE_WRITE_EA.
	access := uint32(windows.GENERIC_READ)
	share := uint32(windows.FILE_SHARE_READ)
	if writable {
		access |= windows.GENERIC_WRITE
		share |= windows.FILE_SHARE_WRITE
	}
	h, err := windows.CreateFile(name, access, share, nil, windows.OPEN_EXISTING,
		windows.FILE_FLAG_OPEN_REPARSE_POINT|windows.FILE_FLAG_BACKUP_SEMANTICS, 0)
	if err != nil {
		if errors.Is(err, windows.ERROR_FILE_NOT_FOUND) || errors.Is(err, windows.ERROR_PATH_NOT_FOUND) {
			return nil, &OpError{Op: "open", Path: path, Err: errors.Join(fs.ErrNotExist, err)}
		}
		return nil, &OpError{Op: "open", Path: path, Err: err}
	}
	f := &winFile{h: h, path: path, writable: writable}
	var tag fileAttributeTagInfoBuf
	err = windows.GetFileInformationByHandleEx(h, fileAttributeTagInfo, (*byte)(unsafe.Pointer(&tag)), uint32(unsafe.Sizeof(tag)))
	if err != nil {
		windows.CloseHandle(h)
		return nil, &OpError{Op: "GetFileInformationByHandleEx", Path: path, Err: err}
	}
	if tag.FileAttributes&FileAttributeReparsePoint != 0 {
		f.tag, f.hasTag = tag.ReparseTag, true
	}
	return f, nil
}

type winFile struct {
	h        windows.Handle
	path     string
	writable bool
	tag      uint32
	hasTag   bool
}

func (f *winFile) Path() string   { return f.path }
func (f *winFile) Writable() bool { return f.writable }

func (f *winFile) writeCheck(op string) error {
	if !f.writable {
		return &OpError{Op: op, Path: f.path, Err: ErrReadOnly}
	}
	return nil
}

func ntStatus(r1 uintptr) error {
	if st := windows.NTStatus(r1); st != windows.STATUS_SUCCESS {
		return st
	}
	return nil
}

func (f *winFile) ReadEA() ([]byte, error) {
	var iosb windows.IO_STATUS_BLOCK
	var info fileEaInfo
	err := windows.NtQueryInformationFile(f.h, &iosb, unsafe.Pointer(&info), uint32(unsafe.Sizeof(info)), fileEaInformation)
	if err != nil {
		return nil, &OpError{Op: "NtQueryInformationFile", Path: f.path, Err: err}
	}
	if info.EaSize == 0 {
		return nil, nil
	}
	buf := make([]byte, info.EaSize)
	r1, _, _ := procNtQueryEaFile.Call(
		uintptr(f.h),
		uintptr(unsafe.Pointer(&iosb)),
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(len(buf)),
		0, // ReturnSingleEntry
		0, // EaList
		0, // EaListLength
		0, // EaIndex
		1, // RestartScan
	)
	if err := ntStatus(r1); err != nil {
		return nil, &OpError{Op: "NtQueryEaFile", Path: f.path, Err: err}
	}
	return buf[:iosb.Information], nil
}

func (f *winFile) WriteEA(chain []byte) error {
	if err := f.writeCheck("NtSetEaFile"); err != nil {
		return err
	}
	if len(chain) == 0 {
		return nil
	}
	var iosb windows.IO_STATUS_BLOCK
	r1, _, _ := procNtSetEaFile.Call(
		uintptr(f.h),
		uintptr(unsafe.Pointer(&iosb)),
		uintptr(unsafe.Pointer(&chain[0])),
		uintptr(len(chain)),
	)
	if err := ntStatus(r1); err != nil {
		return &OpError{Op: "NtSetEaFile", Path: f.path, Err: err}
	}
	return nil
}

func (f *winFile) ReparseTag() (uint32, bool) {
	return f.tag, f.hasTag
}

func (f *winFile) QueryReparsePoint(buf []byte) (int, error) {
	if !f.hasTag {
		return 0, &OpError{Op: "FSCTL_GET_REPARSE_POINT", Path: f.path, Err: ErrNotReparsePoint}
	}
	if len(buf) == 0 {
		return 0, ErrMoreData
	}
	var n uint32
	err := windows.DeviceIoControl(f.h, fsctlGetReparsePoint, nil, 0, &buf[0], uint32(len(buf)), &n, nil)
	if errors.Is(err, windows.ERROR_MORE_DATA) || errors.Is(err, windows.ERROR_INSUFFICIENT_BUFFER) {
		return int(n), ErrMoreData
	}
	if err != nil {
		return 0, &OpError{Op: "FSCTL_GET_REPARSE_POINT", Path: f.path, Err: err}
	}
	return int(n), nil
}

func (f *winFile) SetReparsePoint(data []byte) error {
	if err := f.writeCheck("FSCTL_SET_REPARSE_POINT"); err != nil {
		return err
	}
	if len(data) < ReparseHeaderSize {
		return &OpError{Op: "FSCTL_SET_REPARSE_POINT", Path: f.path, Err: windows.ERROR_INVALID_PARAMETER}
	}
	var n uint32
	if err := windows.DeviceIoControl(f.h, fsctlSetReparsePoint, &data[0], uint32(len(data)), nil, 0, &n, nil); err != nil {
		return &OpError{Op: "FSCTL_SET_REPARSE_POINT", Path: f.path, Err: err}
	}
	f.tag, f.hasTag = uint32(data[0])|uint32(data[1])<<8|uint32(data[2])<<16|uint32(data[3])<<24, true
	return nil
}

func (f *winFile) DeleteReparsePoint(tag uint32) error {
	if err := f.writeCheck("FSCTL_DELETE_REPARSE_POINT"); err != nil {
		return err
	}
	// REPARSE_DATA_BUFFER header with a zero data length.
	var hdr [ReparseHeaderSize]byte
	hdr[0], hdr[1], hdr[2], hdr[3] = byte(tag), byte(tag>>8), byte(tag>>16), byte(tag>>24)
	var n uint32
	if err := windows.DeviceIoControl(f.h, fsctlDeleteReparsePoint, &hdr[0], ReparseHeaderSize, nil, 0, &n, nil); err != nil {
		if errors.Is(err, windows.ERROR_REPARSE_TAG_MISMATCH) {
			err = errors.Join(ErrTagMismatch, err)
		}
		return &OpError{Op: "FSCTL_DELETE_REPARSE_POINT", Path: f.path, Err: err}
	}
	f.tag, f.hasTag = 0, false
	return nil
}

func (f *winFile) BasicInfo() (BasicInfo, error) {
	var b fileBasicInfoBuf
	err := windows.GetFileInformationByHandleEx(f.h, fileBasicInfo, (*byte)(unsafe.Pointer(&b)), uint32(unsafe.Sizeof(b)))
	if err != nil {
		return BasicInfo{}, &OpError{Op: "GetFileInformationByHandleEx", Path: f.path, Err: err}
	}
	return BasicInfo{
		CreationTime:   FileTime(b.CreationTime),
		LastAccessTime: FileTime(b.LastAccessTime),
		LastWriteTime:  FileTime(b.LastWriteTime),
		ChangeTime:     FileTime(b.ChangeTime),
		FileAttributes: b.FileAttributes,
	}, nil
}

func (f *winFile) ReadContent(limit int) ([]byte, error) {
	if _, err := windows.SetFilePointer(f.h, 0, nil, windows.FILE_BEGIN); err != nil {
		return nil, &OpError{Op: "SetFilePointer", Path: f.path, Err: err}
	}
	buf := make([]byte, limit)
	total := 0
	for total < limit {
		var n uint32
		if err := windows.ReadFile(f.h, buf[total:], &n, nil); err != nil {
			return nil, &OpError{Op: "ReadFile", Path: f.path, Err: err}
		}
		if n == 0 {
			break
		}
		total += int(n)
	}
	return buf[:total], nil
}

func (f *winFile) WriteContent(data []byte) error {
	if err := f.writeCheck("WriteFile"); err != nil {
		return err
	}
	if _, err := windows.SetFilePointer(f.h, 0, nil, windows.FILE_BEGIN); err != nil {
		return &OpError{Op: "SetFilePointer", Path: f.path, Err: err}
	}
	for len(data) > 0 {
		var n uint32
		if err := windows.WriteFile(f.h, data, &n, nil); err != nil {
			return &OpError{Op: "WriteFile", Path: f.path, Err: err}
		}
		data = data[n:]
	}
	if err := windows.SetEndOfFile(f.h); err != nil {
		return &OpError{Op: "SetEndOfFile", Path: f.path, Err: err}
	}
	return nil
}

func (f *winFile) Close() error {
	return windows.CloseHandle(f.h)
}
