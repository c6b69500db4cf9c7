package hostfuncs

import (
	"context"
	"crypto/md5" //nolint:gosec // G501: MD5 is the requested checksum, not a security primitive
	"encoding/hex"
	"encoding/json"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/reglet-dev/rtools-bridge/domain/entities"
	bridgeerrors "github.com/reglet-dev/rtools-bridge/domain/errors"
)

// DefaultAppendHeader is written before each appended file. "{file}" is
// replaced with the source path.
const DefaultAppendHeader = `#line 1 "{file}"`

const (
	fileMode = 0o644
	dirMode  = 0o755
	grpWrite = 0o020
)

// PathStatus is the outcome of a file operation on one path.
type PathStatus struct {
	// Error is set when the operation failed for this path.
	Error *entities.ErrorDetail `json:"error,omitempty"`

	// Path is the file the status refers to.
	Path string `json:"path"`

	// Digest is the lowercase hex MD5 digest (checksum requests only).
	Digest string `json:"digest,omitempty"`

	// OK reports success for this path.
	OK bool `json:"ok"`
}

// pathStatusWire carries Path as a RawString so file names that are not
// UTF-8 cross JSON unchanged.
type pathStatusWire struct {
	Error  *entities.ErrorDetail `json:"error,omitempty"`
	Path   entities.RawString    `json:"path"`
	Digest string                `json:"digest,omitempty"`
	OK     bool                  `json:"ok"`
}

// MarshalJSON implements json.Marshaler.
func (s PathStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(pathStatusWire{Error: s.Error, Path: entities.RawString(s.Path), Digest: s.Digest, OK: s.OK})
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *PathStatus) UnmarshalJSON(data []byte) error {
	var w pathStatusWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = PathStatus{Error: w.Error, Path: string(w.Path), Digest: w.Digest, OK: w.OK}
	return nil
}

// MD5Request lists the files to checksum.
type MD5Request struct {
	Files entities.RawStrings `json:"files"`
}

// MD5Response holds one status per requested file, in request order.
type MD5Response struct {
	Results []PathStatus `json:"results"`
}

// PerformMD5 computes the MD5 digest of each file. A missing or unreadable
// file is reported in its own status and processing continues with the rest.
func PerformMD5(ctx context.Context, req MD5Request) MD5Response {
	resp := MD5Response{Results: make([]PathStatus, len(req.Files))}
	for i, path := range req.Files {
		st := PathStatus{Path: path}
		if err := ctx.Err(); err != nil {
			st.Error = bridgeerrors.ToErrorDetail(&bridgeerrors.IOError{Operation: "md5", Path: path, Err: err})
		} else if digest, err := md5File(path); err != nil {
			st.Error = bridgeerrors.ToErrorDetail(err)
		} else {
			st.Digest = digest
			st.OK = true
		}
		resp.Results[i] = st
	}
	return resp
}

func md5File(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // G304: reading caller-named files is the purpose of this function
	if err != nil {
		return "", bridgeerrors.Classify("md5", path, err)
	}
	defer f.Close()

	h := md5.New() //nolint:gosec // G401: see import
	if _, err := io.Copy(h, f); err != nil {
		return "", bridgeerrors.ClassifyIO("md5", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// DirChmodRequest names the trees whose permissions are normalised.
type DirChmodRequest struct {
	// Dirs are the roots to walk. Plain files are accepted as roots too.
	Dirs entities.RawStrings `json:"dirs" validate:"required,min=1,dive,required"`

	// GroupWritable adds group write permission to every file and directory.
	GroupWritable bool `json:"group_writable"`
}

// DirChmodResponse reports every path that changed and every path that failed.
type DirChmodResponse struct {
	// Changed lists the paths whose mode was applied successfully.
	Changed entities.RawStrings `json:"changed"`

	// Failures lists the paths that could not be changed or visited.
	Failures []PathStatus `json:"failures,omitempty"`
}

// FileOption is a functional option for file host functions.
type FileOption func(*fileConfig)

type fileConfig struct {
	chmod  func(string, fs.FileMode) error
	header string
}

func defaultFileConfig() fileConfig {
	return fileConfig{
		chmod:  os.Chmod,
		header: DefaultAppendHeader,
	}
}

// WithAppendHeader overrides the separator line written before each
// appended file. An empty header writes no separator.
func WithAppendHeader(header string) FileOption {
	return func(c *fileConfig) {
		c.header = header
	}
}

// PerformDirChmod walks each tree and normalises permissions: files become
// (mode | 0644) & 0755, keeping any execute bits, and directories become 0755.
// GroupWritable adds 0020 to both. Symbolic links are not followed.
//
// A failure on one path is recorded and the walk continues; no other path
// is touched because of it. A directory that cannot be read is reported
// and its contents are skipped.
func PerformDirChmod(ctx context.Context, req DirChmodRequest, opts ...FileOption) DirChmodResponse {
	cfg := defaultFileConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	fmask, dmask := fs.FileMode(fileMode), fs.FileMode(dirMode)
	if req.GroupWritable {
		fmask |= grpWrite
		dmask |= grpWrite
	}

	resp := DirChmodResponse{Changed: []string{}}
	fail := func(path string, err error) {
		resp.Failures = append(resp.Failures, PathStatus{Path: path, Error: bridgeerrors.ToErrorDetail(err)})
	}

	for _, root := range req.Dirs {
		//nolint:errcheck // walk errors are collected per path by the callback
		filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				fail(path, &bridgeerrors.OSError{Operation: "chmod", Path: path, Err: ctxErr})
				return fs.SkipAll
			}
			if err != nil {
				fail(path, bridgeerrors.Classify("chmod", path, err))
				return nil
			}
			if d.Type()&fs.ModeSymlink != 0 {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				fail(path, bridgeerrors.Classify("chmod", path, err))
				return nil
			}

			mode := (info.Mode().Perm() | fmask) & dmask
			if d.IsDir() {
				mode = dmask
			}
			if err := cfg.chmod(path, mode); err != nil {
				fail(path, bridgeerrors.Classify("chmod", path, err))
				if d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			resp.Changed = append(resp.Changed, path)
			return nil
		})
	}
	return resp
}

// CodeFilesAppendRequest pairs target files with the source files appended to them.
type CodeFilesAppendRequest struct {
	// Targets are the files appended to; recycled when shorter than Sources.
	Targets entities.RawStrings `json:"targets"`

	// Sources are the files whose content is appended; recycled when shorter.
	Sources entities.RawStrings `json:"sources"`
}

// CodeFilesAppendResponse holds one status per pair. Path is the target file.
type CodeFilesAppendResponse struct {
	Results []PathStatus `json:"results"`
}

// PerformCodeFilesAppend appends each source file to its target, preceded by
// a header line naming the source and followed by a newline when the source
// does not end with one. Pair i uses Targets[i % len(Targets)] and
// Sources[i % len(Sources)]; the number of pairs is the longer length.
// The source is opened before the target so a missing source never creates
// or modifies the target.
func PerformCodeFilesAppend(ctx context.Context, req CodeFilesAppendRequest, opts ...FileOption) CodeFilesAppendResponse {
	cfg := defaultFileConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	n := max(len(req.Targets), len(req.Sources))
	resp := CodeFilesAppendResponse{Results: make([]PathStatus, n)}
	for i := 0; i < n; i++ {
		if len(req.Targets) == 0 || len(req.Sources) == 0 {
			resp.Results[i] = PathStatus{Error: bridgeerrors.ToErrorDetail(
				&bridgeerrors.InvalidArgumentError{Argument: "files", Reason: "both target and source lists must be non-empty"})}
			continue
		}
		target := req.Targets[i%len(req.Targets)]
		source := req.Sources[i%len(req.Sources)]
		st := PathStatus{Path: target}
		if err := ctx.Err(); err != nil {
			st.Error = bridgeerrors.ToErrorDetail(&bridgeerrors.IOError{Operation: "append", Path: target, Err: err})
		} else if err := appendFile(target, source, cfg.header); err != nil {
			st.Error = bridgeerrors.ToErrorDetail(err)
		} else {
			st.OK = true
		}
		resp.Results[i] = st
	}
	return resp
}

func appendFile(target, source, header string) (err error) {
	src, err := os.Open(source) //nolint:gosec // G304: caller-named file
	if err != nil {
		return bridgeerrors.Classify("append", source, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_APPEND|os.O_CREATE, fileMode) //nolint:gosec // G304: caller-named file
	if err != nil {
		return bridgeerrors.Classify("append", target, err)
	}
	defer func() {
		if cerr := dst.Close(); cerr != nil && err == nil {
			err = bridgeerrors.ClassifyIO("append", target, cerr)
		}
	}()

	if header != "" {
		line := strings.ReplaceAll(header, "{file}", source) + "\n"
		if _, err := io.WriteString(dst, line); err != nil {
			return bridgeerrors.ClassifyIO("append", target, err)
		}
	}

	tw := &tailWriter{w: dst}
	if _, err := io.Copy(tw, src); err != nil {
		return bridgeerrors.ClassifyIO("append", source, err)
	}
	if tw.n > 0 && tw.last != '\n' {
		if _, err := io.WriteString(dst, "\n"); err != nil {
			return bridgeerrors.ClassifyIO("append", target, err)
		}
	}
	return nil
}

// tailWriter forwards writes and remembers the last byte written.
type tailWriter struct {
	w    io.Writer
	n    int64
	last byte
}

func (t *tailWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if n > 0 {
		t.n += int64(n)
		t.last = p[n-1]
	}
	return n, err
}
