package archive

import (
	"fmt"
	"io"
	"time"

	"github.com/jlaffaye/ftp"
)

// FTPArchive stores raw quiz files on an FTP server under a base directory.
type FTPArchive struct {
	host     string
	port     string
	user     string
	password string
	baseDir  string
	conn     *ftp.ServerConn
}

func NewFTPArchive(host, port, user, password, baseDir string) *FTPArchive {
	return &FTPArchive{
		host:     host,
		port:     port,
		user:     user,
		password: password,
		baseDir:  baseDir,
	}
}

// Connect establishes connection to the FTP server
func (a *FTPArchive) Connect() error {
	addr := a.host + ":" + a.port
	conn, err := ftp.Dial(addr, ftp.DialWithTimeout(10*time.Second))
	if err != nil {
		return fmt.Errorf("failed to connect to FTP: %w", err)
	}

	if err := conn.Login(a.user, a.password); err != nil {
		conn.Quit()
		return fmt.Errorf("failed to login to FTP: %w", err)
	}

	// the base dir may already exist; creation failure surfaces on Stor
	_ = conn.MakeDir(a.baseDir)

	a.conn = conn
	return nil
}

// Store uploads one file under the base directory, connecting lazily.
func (a *FTPArchive) Store(name string, data io.Reader) error {
	if a.conn == nil {
		if err := a.Connect(); err != nil {
			return err
		}
	}

	remotePath := a.baseDir + "/" + name
	if err := a.conn.Stor(remotePath, data); err != nil {
		return fmt.Errorf("failed to upload file: %w", err)
	}
	return nil
}

// Close closes the FTP connection
func (a *FTPArchive) Close() error {
	if a.conn != nil {
		err := a.conn.Quit()
		a.conn = nil
		return err
	}
	return nil
}

var _ Archive = (*FTPArchive)(nil)
var _ Archive = Noop{}
