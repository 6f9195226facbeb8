package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"reflect"
	"testing"

	. "github.com/trezcool/gallery/apps/api/echo"
	"github.com/trezcool/gallery/core"
	"github.com/trezcool/gallery/core/post"
	"github.com/trezcool/gallery/core/site"
	"github.com/trezcool/gallery/core/user"
	"github.com/trezcool/gallery/fs"
	"github.com/trezcool/gallery/services/email"
	"github.com/trezcool/gallery/storage/blob"
	"github.com/trezcool/gallery/storage/database/inmem"
	"github.com/trezcool/gallery/tests"
)

const filesBaseURL = "http://files.test"

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type fixture struct {
	app      Server
	conf     *core.Config
	usrRepo  user.Repository
	postRepo post.Repository
	usrSvc   user.Service
	siteSvc  site.Service
	blobs    *blob.Store
}

func setup(t *testing.T) fixture {
	conf := core.NewTestConfig()
	logger := testutil.NewLogger()

	core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf, logger)
	emailsvc.ResetSentMessages()
	if err := user.LoadCommonPasswords(appfs.FS, appfs.CommonPasswords); err != nil {
		t.Fatalf("LoadCommonPasswords(): %v", err)
	}
	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)

	blobs, err := blob.Open(filepath.Join(t.TempDir(), "blobs.db"), filesBaseURL)
	if err != nil {
		t.Fatalf("blob.Open(): %v", err)
	}
	t.Cleanup(func() { _ = blobs.Close() })

	// set up DB & repos
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	postRepo := inmemdb.NewPostRepository(db)

	// set up services
	siteSvc := site.NewService(inmemdb.NewSiteRepository(db), blobs, logger)
	postSvc := post.NewService(postRepo, siteSvc, blobs, conf, logger)
	usrSvc := user.NewServiceMock(usrRepo, emailsvc.NewConsoleServiceMock(conf, logger), postSvc, conf, logger)

	// set up server
	app := NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logger,
		UserSvc:        usrSvc,
		PostSvc:        postSvc,
		SiteSvc:        siteSvc,
		Blobs:          blobs,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	})

	return fixture{
		app:      app,
		conf:     conf,
		usrRepo:  usrRepo,
		postRepo: postRepo,
		usrSvc:   usrSvc,
		siteSvc:  siteSvc,
		blobs:    blobs,
	}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func (f fixture) getToken(t *testing.T, usr user.User) string {
	token, err := GenerateToken(f.conf, GetUserClaims(f.conf, usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

// run serves every test against the app, defaulting to a 200 response.
func (f fixture) run(t *testing.T, tests []httpTest) {
	for _, tt := range tests {
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			f.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("json.Unmarshal() failed: %v; body %s", err, rec.Body.String())
	}
}
