package attach

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gigline/internal/config"
)

func TestDecodeBase64DataURL(t *testing.T) {
	payload := []byte("hello world")
	data, ct, err := DecodeBase64(DataURL("text/plain", payload))
	require.NoError(t, err)
	assert.Equal(t, "text/plain", ct)
	assert.Equal(t, payload, data)

	data, ct, err = DecodeBase64(EncodeBase64(payload))
	require.NoError(t, err)
	assert.Empty(t, ct)
	assert.Equal(t, payload, data)
}

func TestDecodeBase64Unpadded(t *testing.T) {
	data, _, err := DecodeBase64("aGk")
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), data)
}

func TestDecodeBase64Rejects(t *testing.T) {
	_, _, err := DecodeBase64("data:text/plain,hello")
	assert.Error(t, err)
	_, _, err = DecodeBase64("data:text/plain;base64")
	assert.Error(t, err)
	_, _, err = DecodeBase64("!!!")
	assert.Error(t, err)
}

func TestSniffDetectsPNG(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	assert.Equal(t, "image/png", Sniff("", png))
	assert.Equal(t, "image/png", Sniff("application/octet-stream", png))
	assert.Equal(t, "application/pdf", Sniff("application/pdf", png))
}

func TestLimits(t *testing.T) {
	limits := config.Default().Limits
	assert.Equal(t, int64(15<<20), Limit(KindTaskFile, "image/png", limits))
	assert.Equal(t, int64(15<<20), Limit(KindTaskFile, "video/mp4", limits))
	assert.Equal(t, int64(15<<20), Limit(KindTaskFile, "application/pdf", limits))
	assert.Equal(t, int64(5<<20), Limit(KindTicket, "image/png", limits))
	assert.Equal(t, int64(12<<20), Limit(KindCompanyDocument, "video/mp4", limits))

	shot := File{Name: "shot.png", ContentType: "image/png", Data: bytes.Repeat([]byte("x"), 6<<20)}
	assert.NoError(t, CheckFile(KindTaskFile, shot, limits))
	assert.Error(t, CheckFile(KindTicket, shot, limits))

	small := config.Limits{TaskFileBytes: 4, ImageBytes: 2, VideoBytes: 2, TicketAttachmentsTotalBytes: 6, CompanyDocumentBytes: 4}
	err := CheckFile(KindTaskFile, File{Name: "a.txt", ContentType: "text/plain", Data: []byte("12345")}, small)
	var tooLarge TooLargeError
	require.True(t, errors.As(err, &tooLarge))
	assert.Equal(t, int64(4), tooLarge.Limit)

	assert.Error(t, CheckFile(KindTaskFile, File{Name: "empty"}, small))
}

func TestPrepareTicketAggregate(t *testing.T) {
	small := config.Limits{TaskFileBytes: 4, ImageBytes: 4, VideoBytes: 4, TicketAttachmentsTotalBytes: 6, CompanyDocumentBytes: 4}
	files := []File{
		{Name: "a.txt", ContentType: "text/plain", Data: []byte("abcd")},
		{Name: "b.txt", ContentType: "text/plain", Data: []byte("efgh")},
	}
	_, err := Prepare(KindTicket, files, small)
	var tooLarge TooLargeError
	require.True(t, errors.As(err, &tooLarge))
	assert.Equal(t, int64(8), tooLarge.Size)

	out, err := Prepare(KindTaskFile, []File{{Data: bytes.Repeat([]byte("x"), 3)}}, small)
	require.NoError(t, err)
	assert.Equal(t, "file-1", out[0].Name)
	assert.NotEmpty(t, out[0].ContentType)
}
