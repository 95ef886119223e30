package server

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/javajack/sheetform"
	"github.com/javajack/sheetform/xlsxform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func saveXLSX(t *testing.T, build func(f *excelize.File)) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	build(f)
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

// newTestServer serves formA (fields fieldX, fieldY) and formB (fieldC) from a temp dir.
func newTestServer(t *testing.T, opts ...sheetform.Option) *Server {
	t.Helper()
	dir := t.TempDir()
	formA := saveXLSX(t, func(f *excelize.File) {
		f.SetCellValue("Sheet1", "B1", "${fieldX}")
		f.SetCellValue("Sheet1", "B2", "${fieldY}")
	})
	formB := saveXLSX(t, func(f *excelize.File) {
		f.SetCellValue("Sheet1", "B1", "${fieldC}")
	})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "formA.xlsx"), formA, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "formB.xlsx"), formB, 0o644))

	reg := sheetform.NewRegistry(sheetform.MustMappingTable("formA", map[string]string{"Name": "fieldX"}))
	base := []sheetform.Option{
		sheetform.WithModel(xlsxform.New()),
		sheetform.WithTemplateDir(dir),
		sheetform.WithRegistry(reg),
	}
	filler := sheetform.NewFiller(append(base, opts...)...)
	return New(filler, Config{MaxUploads: 2}, nil)
}

// workbook has one sheet per name; each sheet gets the same rows.
func workbook(t *testing.T, sheets ...string) []byte {
	t.Helper()
	return saveXLSX(t, func(f *excelize.File) {
		for i, name := range sheets {
			if i == 0 {
				f.SetSheetName("Sheet1", name)
			} else {
				f.NewSheet(name)
			}
			f.SetCellValue(name, "A1", "Name")
			f.SetCellValue(name, "B1", "X")
			f.SetCellValue(name, "A2", "Foo")
			f.SetCellValue(name, "B2", "Y")
		}
	})
}

func multipartRequest(t *testing.T, target, fileName string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("workbook", fileName)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestUploadThenDownload(t *testing.T) {
	s := newTestServer(t)

	rec := do(s, multipartRequest(t, "/api/uploads", "data.xlsx", workbook(t, "formA", "formB")))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	up := decode[uploadResponse](t, rec)
	assert.NotEmpty(t, up.ID)
	assert.Equal(t, "data.xlsx", up.FileName)
	require.Len(t, up.Sheets, 2)
	assert.Equal(t, sheetSummary{Template: "formA", TableFound: true, Fields: []string{"fieldX"}, Dropped: []string{"Foo"}}, up.Sheets[0])
	assert.Equal(t, sheetSummary{Template: "formB", TableFound: false, Fields: []string{}, Dropped: []string{"Name", "Foo"}}, up.Sheets[1])

	rec = do(s, httptest.NewRequest(http.MethodGet, "/api/uploads/"+up.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, up.ID, decode[uploadResponse](t, rec).ID)

	rec = do(s, httptest.NewRequest(http.MethodGet, "/api/uploads/"+up.ID+"/download", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, sheetform.ArchiveContentType, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=filled-forms.zip`, rec.Header().Get("Content-Disposition"))

	data := rec.Body.Bytes()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	var names []string
	for _, zf := range zr.File {
		names = append(names, zf.Name)
	}
	assert.Equal(t, []string{"formA_filled.xlsx", "formB_filled.xlsx"}, names)
}

func TestFill_SingleTemplate(t *testing.T) {
	s := newTestServer(t)

	rec := do(s, multipartRequest(t, "/api/fill", "data.xlsx", workbook(t, "formA")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, xlsxform.ContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "formA_filled.xlsx")

	filled, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer filled.Close()
	x, _ := filled.GetCellValue("Sheet1", "B1")
	y, _ := filled.GetCellValue("Sheet1", "B2")
	assert.Equal(t, "X", x)
	assert.Equal(t, "${fieldY}", y)
}

func TestDownload_UnknownID(t *testing.T) {
	s := newTestServer(t)
	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/uploads/nope/download", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeNoDataUploaded, decode[errorResponse](t, rec).Code)
}

func TestFill_MissingTemplateAborts(t *testing.T) {
	s := newTestServer(t)
	rec := do(s, multipartRequest(t, "/api/fill", "data.xlsx", workbook(t, "formA", "formZ")))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decode[errorResponse](t, rec)
	assert.Equal(t, "TEMPLATE_NOT_FOUND", resp.Code)
	assert.Equal(t, "formZ", resp.Template)
}

func TestFill_NoKnownTemplate(t *testing.T) {
	s := newTestServer(t, sheetform.WithOnlyKnownTemplates(true))
	rec := do(s, multipartRequest(t, "/api/fill", "data.xlsx", workbook(t, "formB")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeNoDataUploaded, decode[errorResponse](t, rec).Code)
}

func TestUpload_Rejects(t *testing.T) {
	s := newTestServer(t)

	rec := do(s, multipartRequest(t, "/api/uploads", "data.csv", []byte("a,b")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeInvalidWorkbook, decode[errorResponse](t, rec).Code)

	rec = do(s, multipartRequest(t, "/api/uploads", "data.xlsx", []byte("not a workbook")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeInvalidWorkbook, decode[errorResponse](t, rec).Code)

	rec = do(s, httptest.NewRequest(http.MethodPost, "/api/uploads", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeBadRequest, decode[errorResponse](t, rec).Code)
}

func TestUploads_OldestEvicted(t *testing.T) {
	s := newTestServer(t)
	var ids []string
	for range 3 {
		rec := do(s, multipartRequest(t, "/api/uploads", "data.xlsx", workbook(t, "formA")))
		require.Equal(t, http.StatusCreated, rec.Code)
		ids = append(ids, decode[uploadResponse](t, rec).ID)
	}

	assert.Equal(t, http.StatusNotFound, do(s, httptest.NewRequest(http.MethodGet, "/api/uploads/"+ids[0], nil)).Code)
	assert.Equal(t, http.StatusOK, do(s, httptest.NewRequest(http.MethodGet, "/api/uploads/"+ids[2], nil)).Code)
	assert.Equal(t, 2, s.uploads.len())
}

func TestTemplateFields(t *testing.T) {
	s := newTestServer(t)

	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/templates/formA/fields", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[struct {
		Template string                `json:"template"`
		Fields   []sheetform.FieldInfo `json:"fields"`
	}](t, rec)
	assert.Equal(t, "formA", resp.Template)
	require.Len(t, resp.Fields, 2)
	assert.Equal(t, "fieldX", resp.Fields[0].Name)

	rec = do(s, httptest.NewRequest(http.MethodGet, "/api/templates/formA/fields?format=text", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `fieldX (text) <- "Name"`)

	rec = do(s, httptest.NewRequest(http.MethodGet, "/api/templates/missing/fields", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(s, httptest.NewRequest(http.MethodGet, "/api/templates/a..b/fields", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := do(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}
