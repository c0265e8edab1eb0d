// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package jail

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"slices"
	"sort"
	"strings"
	"testing"

	"golang.org/x/sys/unix"
	"kernel.org/pub/linux/libs/security/libcap/cap"
)

// fakeNode is one entry in the fake filesystem.
type fakeNode struct {
	uid, gid     int
	mode         uint32
	data         []byte
	link         string
	major, minor uint32
}

// deletion records who removed what.
type deletion struct {
	path  string
	owner int
	euid  int
}

// run records a child process start.
type run struct {
	argv []string
	env  []string
	uid  int
	root string
}

// fakeSystem is an in-memory System. It keeps a flat filesystem keyed
// by host path, a mount table, the process identity and capability
// state, and a log of every mutating call in order.
type fakeSystem struct {
	uid, gid, euid int
	groups         []int

	keepCaps  bool
	permitAll bool
	effective []cap.Value

	accounts map[string]Account
	nodes    map[string]*fakeNode
	mounted  map[string]bool
	root     string
	cwd      string
	umask    int

	calls     []string
	deletions []deletion
	runs      []run
	execs     []run
	fileCaps  map[string]string
	persona   uint

	runStatus ExitStatus
	runErr    error
	// failures injects errors keyed by "op" or "op path".
	failures map[string]error
}

// newFakeSystem returns a fake running as a setuid-root helper invoked
// by uid:gid.
func newFakeSystem(uid, gid int) *fakeSystem {
	f := &fakeSystem{
		uid:      uid,
		gid:      gid,
		euid:     0,
		accounts: map[string]Account{"root": {Name: "root"}},
		nodes:    map[string]*fakeNode{"/": {mode: modeDirectory | 0o755}},
		mounted:  map[string]bool{},
		cwd:      "/",
		umask:    0o022,
		fileCaps: map[string]string{},
		failures: map[string]error{},
	}
	return f
}

func (f *fakeSystem) addAccount(name string, uid, gid int) Account {
	account := Account{Name: name, UID: uid, GID: gid}
	f.accounts[name] = account
	return account
}

// addDir creates a directory at a host path, creating missing parents
// as root-owned 0755 directories.
func (f *fakeSystem) addDir(hostPath string, uid, gid int, perm uint32) {
	f.ensureParents(hostPath)
	f.nodes[path.Clean(hostPath)] = &fakeNode{uid: uid, gid: gid, mode: modeDirectory | perm}
}

func (f *fakeSystem) addFile(hostPath string, uid, gid int, data []byte) {
	f.ensureParents(hostPath)
	f.nodes[path.Clean(hostPath)] = &fakeNode{uid: uid, gid: gid, mode: modeRegular | 0o644, data: data}
}

func (f *fakeSystem) addSymlink(hostPath string, uid, gid int, target string) {
	f.ensureParents(hostPath)
	f.nodes[path.Clean(hostPath)] = &fakeNode{uid: uid, gid: gid, mode: modeSymlink | 0o777, link: target}
}

func (f *fakeSystem) ensureParents(hostPath string) {
	for parent := path.Dir(path.Clean(hostPath)); parent != "/"; parent = path.Dir(parent) {
		if _, ok := f.nodes[parent]; !ok {
			f.nodes[parent] = &fakeNode{mode: modeDirectory | 0o755}
		}
	}
}

func (f *fakeSystem) exists(hostPath string) bool {
	_, ok := f.nodes[path.Clean(hostPath)]
	return ok
}

func (f *fakeSystem) node(hostPath string) *fakeNode {
	return f.nodes[path.Clean(hostPath)]
}

// resolve maps a process path to a host path, honoring the chroot.
func (f *fakeSystem) resolve(name string) string {
	if !strings.HasPrefix(name, "/") {
		name = f.cwd + "/" + name
	}
	inner := path.Clean(name)
	if f.root == "" {
		return inner
	}
	if inner == "/" {
		return f.root
	}
	return f.root + inner
}

// follow resolves symlinks in the final component.
func (f *fakeSystem) follow(hostPath string) (string, *fakeNode) {
	for range 8 {
		node, ok := f.nodes[hostPath]
		if !ok {
			return hostPath, nil
		}
		if node.mode&modeTypeMask != modeSymlink {
			return hostPath, node
		}
		target := node.link
		if !strings.HasPrefix(target, "/") {
			target = path.Dir(hostPath) + "/" + target
			hostPath = path.Clean(target)
			continue
		}
		hostPath = f.resolve(target)
	}
	return hostPath, nil
}

func (f *fakeSystem) record(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeSystem) injected(op, name string) error {
	if err, ok := f.failures[op+" "+name]; ok {
		return err
	}
	return f.failures[op]
}

// callsWithPrefix returns the logged calls whose op is one of ops.
func (f *fakeSystem) callsWithPrefix(ops ...string) []string {
	var matched []string
	for _, call := range f.calls {
		op, _, _ := strings.Cut(call, " ")
		if slices.Contains(ops, op) {
			matched = append(matched, call)
		}
	}
	return matched
}

func (f *fakeSystem) indexOf(call string) int {
	return slices.Index(f.calls, call)
}

func (f *fakeSystem) hasPrivilege(value cap.Value) bool {
	return f.euid == 0 || slices.Contains(f.effective, value)
}

func pathError(op, name string, errno unix.Errno) error {
	return &os.PathError{Op: op, Path: name, Err: errno}
}

func (f *fakeSystem) Getuid() int  { return f.uid }
func (f *fakeSystem) Getgid() int  { return f.gid }
func (f *fakeSystem) Geteuid() int { return f.euid }

func (f *fakeSystem) Setgroups(gids []int) error {
	f.record("setgroups %v", gids)
	if err := f.injected("setgroups", ""); err != nil {
		return err
	}
	if !f.hasPrivilege(cap.SETGID) {
		return unix.EPERM
	}
	f.groups = slices.Clone(gids)
	return nil
}

func (f *fakeSystem) Setgid(gid int) error {
	f.record("setgid %d", gid)
	if err := f.injected("setgid", ""); err != nil {
		return err
	}
	if !f.hasPrivilege(cap.SETGID) {
		return unix.EPERM
	}
	f.gid = gid
	return nil
}

func (f *fakeSystem) Setuid(uid int) error {
	f.record("setuid %d", uid)
	if err := f.injected("setuid", ""); err != nil {
		return err
	}
	if !f.hasPrivilege(cap.SETUID) {
		return unix.EPERM
	}
	wasRoot := f.euid == 0
	f.uid, f.euid = uid, uid
	if wasRoot && uid != 0 {
		// Leaving root clears the effective set; keep-caps preserves
		// the permitted set.
		f.effective = nil
		f.permitAll = f.keepCaps
	}
	return nil
}

func (f *fakeSystem) SetKeepCaps(keep bool) error {
	f.record("keepcaps %t", keep)
	if err := f.injected("keepcaps", ""); err != nil {
		return err
	}
	f.keepCaps = keep
	return nil
}

func (f *fakeSystem) SetProcCaps(caps []cap.Value) error {
	names := make([]string, len(caps))
	for index, value := range caps {
		names[index] = value.String()
	}
	f.record("capset %s", strings.Join(names, ","))
	if err := f.injected("capset", ""); err != nil {
		return err
	}
	if f.euid != 0 && !f.permitAll {
		for _, value := range caps {
			if !slices.Contains(f.effective, value) {
				return unix.EPERM
			}
		}
	}
	f.effective = slices.Clone(caps)
	f.permitAll = false
	return nil
}

func (f *fakeSystem) EffectiveCaps() ([]string, error) {
	if err := f.injected("capget", ""); err != nil {
		return nil, err
	}
	names := make([]string, len(f.effective))
	for index, value := range f.effective {
		names[index] = value.String()
	}
	return names, nil
}

func (f *fakeSystem) LookupAccount(name string) (Account, error) {
	account, ok := f.accounts[name]
	if !ok {
		return Account{}, fmt.Errorf("user: unknown user %s", name)
	}
	return account, nil
}

func (f *fakeSystem) Stat(name string) (FileStat, error) {
	if err := f.injected("stat", name); err != nil {
		return FileStat{}, err
	}
	_, node := f.follow(f.resolve(name))
	if node == nil {
		return FileStat{}, pathError("stat", name, unix.ENOENT)
	}
	return FileStat{UID: node.uid, GID: node.gid, Mode: node.mode}, nil
}

func (f *fakeSystem) Lstat(name string) (FileStat, error) {
	if err := f.injected("lstat", name); err != nil {
		return FileStat{}, err
	}
	node := f.node(f.resolve(name))
	if node == nil {
		return FileStat{}, pathError("lstat", name, unix.ENOENT)
	}
	return FileStat{UID: node.uid, GID: node.gid, Mode: node.mode}, nil
}

func (f *fakeSystem) ReadDir(name string) ([]string, error) {
	if err := f.injected("readdir", name); err != nil {
		return nil, err
	}
	directory, node := f.follow(f.resolve(name))
	if node == nil {
		return nil, pathError("open", name, unix.ENOENT)
	}
	if node.mode&modeTypeMask != modeDirectory {
		return nil, pathError("readdirent", name, unix.ENOTDIR)
	}
	prefix := directory + "/"
	if directory == "/" {
		prefix = "/"
	}
	var names []string
	for key := range f.nodes {
		if key == directory || !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := key[len(prefix):]
		if rest != "" && !strings.Contains(rest, "/") {
			names = append(names, rest)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (f *fakeSystem) hasChildren(hostPath string) bool {
	prefix := hostPath + "/"
	for key := range f.nodes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

func (f *fakeSystem) Remove(name string) error {
	f.record("remove %s", name)
	if err := f.injected("remove", name); err != nil {
		return err
	}
	hostPath := f.resolve(name)
	node := f.node(hostPath)
	if node == nil {
		return pathError("remove", name, unix.ENOENT)
	}
	if node.mode&modeTypeMask == modeDirectory && f.hasChildren(hostPath) {
		return pathError("remove", name, unix.ENOTEMPTY)
	}
	f.deletions = append(f.deletions, deletion{path: name, owner: node.uid, euid: f.euid})
	delete(f.nodes, hostPath)
	return nil
}

func (f *fakeSystem) Unlink(name string) error {
	f.record("unlink %s", name)
	if err := f.injected("unlink", name); err != nil {
		return err
	}
	hostPath := f.resolve(name)
	node := f.node(hostPath)
	if node == nil {
		return pathError("unlink", name, unix.ENOENT)
	}
	if node.mode&modeTypeMask == modeDirectory {
		return pathError("unlink", name, unix.EISDIR)
	}
	delete(f.nodes, hostPath)
	return nil
}

func (f *fakeSystem) Mknod(name string, mode uint32, major, minor uint32) error {
	f.record("mknod %s %o %d:%d umask=%o", name, mode, major, minor, f.umask)
	if err := f.injected("mknod", name); err != nil {
		return err
	}
	hostPath := f.resolve(name)
	if f.exists(hostPath) {
		return pathError("mknod", name, unix.EEXIST)
	}
	if !f.exists(path.Dir(hostPath)) {
		return pathError("mknod", name, unix.ENOENT)
	}
	f.nodes[hostPath] = &fakeNode{
		uid:   f.euid,
		gid:   f.gid,
		mode:  mode &^ uint32(f.umask),
		major: major,
		minor: minor,
	}
	return nil
}

func (f *fakeSystem) Symlink(target, link string) error {
	f.record("symlink %s %s", link, target)
	if err := f.injected("symlink", link); err != nil {
		return err
	}
	hostPath := f.resolve(link)
	if f.exists(hostPath) {
		return pathError("symlink", link, unix.EEXIST)
	}
	if !f.exists(path.Dir(hostPath)) {
		return pathError("symlink", link, unix.ENOENT)
	}
	f.nodes[hostPath] = &fakeNode{uid: f.euid, gid: f.gid, mode: modeSymlink | 0o777, link: target}
	return nil
}

func (f *fakeSystem) Umask(mask int) int {
	f.record("umask %04o", mask)
	previous := f.umask
	f.umask = mask
	return previous
}

func (f *fakeSystem) Mounted(name string) (bool, error) {
	if err := f.injected("mounted", name); err != nil {
		return false, err
	}
	return f.mounted[f.resolve(name)], nil
}

func (f *fakeSystem) Mount(source, target, fstype, options string) error {
	f.record("mount %s %s %s", source, target, fstype)
	if err := f.injected("mount", target); err != nil {
		return err
	}
	if f.euid != 0 {
		return unix.EPERM
	}
	hostPath := f.resolve(target)
	if f.mounted[hostPath] {
		return unix.EBUSY
	}
	f.mounted[hostPath] = true
	return nil
}

func (f *fakeSystem) Unmount(name string) error {
	f.record("umount %s", name)
	if err := f.injected("umount", name); err != nil {
		return err
	}
	hostPath := f.resolve(name)
	if !f.exists(hostPath) {
		return unix.ENOENT
	}
	if !f.mounted[hostPath] {
		return unix.EINVAL
	}
	delete(f.mounted, hostPath)
	return nil
}

func (f *fakeSystem) Chroot(name string) error {
	f.record("chroot %s", name)
	if err := f.injected("chroot", name); err != nil {
		return err
	}
	if !f.hasPrivilege(cap.SYS_CHROOT) {
		return pathError("chroot", name, unix.EPERM)
	}
	hostPath, node := f.follow(f.resolve(name))
	if node == nil {
		return pathError("chroot", name, unix.ENOENT)
	}
	if node.mode&modeTypeMask != modeDirectory {
		return pathError("chroot", name, unix.ENOTDIR)
	}
	if hostPath == "/" {
		hostPath = ""
	}
	f.root = hostPath
	return nil
}

func (f *fakeSystem) Chdir(name string) error {
	f.record("chdir %s", name)
	if err := f.injected("chdir", name); err != nil {
		return err
	}
	f.cwd = path.Clean(name)
	return nil
}

func (f *fakeSystem) MapFile(name string) (*MappedFile, error) {
	if err := f.injected("map", name); err != nil {
		return nil, err
	}
	_, node := f.follow(f.resolve(name))
	if node == nil {
		return nil, pathError("open", name, unix.ENOENT)
	}
	return newMappedBytes(slices.Clone(node.data)), nil
}

func (f *fakeSystem) ReadHead(name string, limit int) ([]byte, error) {
	if err := f.injected("read", name); err != nil {
		return nil, err
	}
	_, node := f.follow(f.resolve(name))
	if node == nil {
		return nil, pathError("open", name, unix.ENOENT)
	}
	data := node.data
	if len(data) > limit {
		data = data[:limit]
	}
	return slices.Clone(data), nil
}

func (f *fakeSystem) SetFileCaps(root, relative string, caps *cap.Set) error {
	f.record("setcap %s", relative)
	if err := f.injected("setcap", relative); err != nil {
		return err
	}
	if f.euid != 0 {
		return unix.EPERM
	}
	// The kernel keeps the lookup under root; path.Clean of an absolute
	// path already drops leading "..".
	hostPath := path.Clean(f.resolve(root) + path.Clean("/"+relative))
	if !f.exists(hostPath) {
		return pathError("openat2", relative, unix.ENOENT)
	}
	f.fileCaps[hostPath] = caps.String()
	return nil
}

func (f *fakeSystem) SetPersonality(persona uint) error {
	f.record("personality %#x", persona)
	if err := f.injected("personality", ""); err != nil {
		return err
	}
	f.persona = persona
	return nil
}

func (f *fakeSystem) Run(argv, env []string) (ExitStatus, error) {
	f.record("run %s", strings.Join(argv, " "))
	f.runs = append(f.runs, run{argv: slices.Clone(argv), env: slices.Clone(env), uid: f.euid, root: f.root})
	return f.runStatus, f.runErr
}

func (f *fakeSystem) Exec(argv, env []string) error {
	f.record("exec %s", strings.Join(argv, " "))
	if err := f.injected("exec", ""); err != nil {
		return err
	}
	f.execs = append(f.execs, run{argv: slices.Clone(argv), env: slices.Clone(env), uid: f.euid, root: f.root})
	return nil
}

// privilegedCalls are the operations preflight must never reach.
var privilegedCalls = []string{
	"mount", "umount", "mknod", "symlink", "unlink", "remove",
	"chroot", "setcap", "setuid", "setgid", "setgroups", "run", "exec",
}

// testLogger discards log output unless the test runs verbose.
func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	if testing.Verbose() {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
