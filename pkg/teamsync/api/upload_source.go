package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/tendant/teamsync/pkg/teamsync"
)

var errMalformedUpload = errors.New("malformed multipart body")

// multipartSource yields file parts of a multipart body in wire order.
// Parts are streamed, so each body must be consumed before the next call.
type multipartSource struct {
	reader *multipart.Reader
}

func newMultipartSource(reader *multipart.Reader) *multipartSource {
	return &multipartSource{reader: reader}
}

func (s *multipartSource) Next() (teamsync.Upload, error) {
	for {
		part, err := s.reader.NextPart()
		if errors.Is(err, io.EOF) {
			return teamsync.Upload{}, io.EOF
		}
		if err != nil {
			return teamsync.Upload{}, fmt.Errorf("%w: %w", errMalformedUpload, err)
		}

		// plain form values carry no file
		if part.FileName() == "" {
			continue
		}

		name := part.FormName()
		if name == "" {
			name = part.FileName()
		}
		return teamsync.Upload{
			ContentType: part.Header.Get("Content-Type"),
			Name:        name,
			Body:        partBody{part},
		}, nil
	}
}

// partBody tags failed reads of a part body as malformed input
type partBody struct {
	r io.Reader
}

func (p partBody) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if err != nil && err != io.EOF {
		err = fmt.Errorf("%w: %w", errMalformedUpload, err)
	}
	return n, err
}
