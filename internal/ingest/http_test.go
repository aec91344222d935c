package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uploadRequest(t *testing.T, fields map[string]string, file []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != nil {
		fw, err := mw.CreateFormFile("file", "localidades.xlsx")
		require.NoError(t, err)
		_, err = fw.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/admin/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func surveyWorkbook(t *testing.T) []byte {
	t.Helper()
	sheets := surveySheets()
	return workbookBytes(t,
		namedSheet{name: "3ª Tranche", rows: sheets["3ª Tranche"]},
		namedSheet{name: "Convencional", rows: sheets["Convencional"]},
	)
}

func TestImportHandler(t *testing.T) {
	runner, store := newSQLiteRunner(t)
	invalidated := 0
	h := ImportHandler(runner, discardLogger(), func() { invalidated++ })

	rec := httptest.NewRecorder()
	h(rec, uploadRequest(t, map[string]string{"mode": "reload"}, surveyWorkbook(t)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var rep Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Equal(t, ModeReload, rep.Mode)
	assert.Equal(t, "import", rep.Profile)
	assert.Equal(t, 5, rep.Stored())
	assert.Equal(t, 1, invalidated)

	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)
}

func TestImportHandler_DefaultsToUpsert(t *testing.T) {
	runner, _ := newSQLiteRunner(t)
	h := ImportHandler(runner, discardLogger(), nil)

	rec := httptest.NewRecorder()
	h(rec, uploadRequest(t, nil, surveyWorkbook(t)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var rep Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	assert.Equal(t, ModeUpsert, rep.Mode)
}

func TestImportHandler_BadRequests(t *testing.T) {
	runner, _ := newSQLiteRunner(t)
	h := ImportHandler(runner, discardLogger(), nil)

	tests := []struct {
		name   string
		fields map[string]string
		file   []byte
	}{
		{"fixture mode", map[string]string{"mode": "fixture"}, surveyWorkbook(t)},
		{"unknown mode", map[string]string{"mode": "merge"}, surveyWorkbook(t)},
		{"unknown profile", map[string]string{"profile": "legacy"}, surveyWorkbook(t)},
		{"no file", nil, nil},
		{"not a workbook", nil, []byte("municipio;comunidade\n")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h(rec, uploadRequest(t, tc.fields, tc.file))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/admin/import", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "application/json")
	h(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportHandler_Busy(t *testing.T) {
	runner, _ := newSQLiteRunner(t)
	called := false
	h := ImportHandler(runner, discardLogger(), func() { called = true })

	runner.mu.Lock()
	defer runner.mu.Unlock()

	rec := httptest.NewRecorder()
	h(rec, uploadRequest(t, nil, surveyWorkbook(t)))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, called)
}
