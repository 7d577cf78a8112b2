package admin

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/karlutxo/zk-tools/internal/employee"
	"github.com/karlutxo/zk-tools/internal/employee/cache"
	"github.com/karlutxo/zk-tools/internal/payroll"
	"github.com/karlutxo/zk-tools/internal/terminal"
	dErrors "github.com/karlutxo/zk-tools/pkg/domain-errors"
)

type fakeConn struct {
	users    []terminal.DeviceUser
	setCalls []terminal.DeviceUser
	deleted  []string
	failSet  map[string]string
}

func (c *fakeConn) Users(context.Context) ([]terminal.DeviceUser, error) { return c.users, nil }
func (c *fakeConn) Templates(context.Context) ([]terminal.Template, error) {
	return nil, nil
}
func (c *fakeConn) SetUser(_ context.Context, user terminal.DeviceUser) error {
	if message, ok := c.failSet[user.UserID]; ok {
		return errors.New(message)
	}
	c.setCalls = append(c.setCalls, user)
	return nil
}
func (c *fakeConn) DeleteUser(_ context.Context, uid int, userID string) error {
	c.deleted = append(c.deleted, userID)
	return nil
}
func (c *fakeConn) Enable(context.Context) error                   { return nil }
func (c *fakeConn) Disable(context.Context) error                  { return nil }
func (c *fakeConn) Clock(context.Context) (time.Time, error)       { return time.Now(), nil }
func (c *fakeConn) SetClock(context.Context, time.Time) error      { return nil }
func (c *fakeConn) SerialNumber(context.Context) (string, error)   { return "SN-1", nil }
func (c *fakeConn) DeviceName(context.Context) (string, error)     { return "Puerta", nil }
func (c *fakeConn) Model(context.Context) (string, error)          { return "", nil }
func (c *fakeConn) Platform(context.Context) (string, error)       { return "", nil }
func (c *fakeConn) FirmwareVersion(context.Context) (string, error) { return "", nil }
func (c *fakeConn) MAC(context.Context) (string, error)            { return "", nil }
func (c *fakeConn) AttendanceCount(context.Context) (int, error)   { return 0, nil }
func (c *fakeConn) Disconnect() error                              { return nil }

type fakeDialer struct {
	conn *fakeConn
	err  error
}

func (d *fakeDialer) Dial(context.Context, string, int, time.Duration) (terminal.Conn, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.conn, nil
}

type ServiceSuite struct {
	suite.Suite
	conn    *fakeConn
	store   *cache.Store
	service *Service
}

func (s *ServiceSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(nopWriter{}, nil))
	s.conn = &fakeConn{}
	connector := terminal.NewConnector(&fakeDialer{conn: s.conn}, 1, 0, time.Second, logger)
	terminals := terminal.NewService(connector, logger)
	s.store = cache.New()
	s.service = NewService(terminals, s.store, payroll.New("", time.Second, time.Hour, logger), nil, logger)
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) TestResolveSource() {
	src, err := s.service.ResolveSource(" 10.0.0.1:4371 ")
	s.Require().NoError(err)
	s.Equal("10.0.0.1:4371", src.Key)
	s.Equal(4371, src.Port)
	s.False(src.Virtual)

	// The default port never shows in the cache key.
	src, err = s.service.ResolveSource("10.0.0.1:4370")
	s.Require().NoError(err)
	s.Equal("10.0.0.1", src.Key)

	src, err = s.service.ResolveSource(cache.SourcePayroll)
	s.Require().NoError(err)
	s.True(src.Virtual)

	_, err = s.service.ResolveSource("   ")
	s.Require().Error(err)
	s.Equal(dErrors.CodeBadRequest, dErrors.CodeOf(err))
}

func (s *ServiceSuite) TestFetchTerminalReplacesCache() {
	s.conn.users = []terminal.DeviceUser{
		{UID: 1, Name: "Ana", UserID: "100", Card: "555001", Privilege: 14},
	}
	src, _ := s.service.ResolveSource("10.0.0.1")

	s.store.SetEmployees(src.Key, []employee.Employee{{UID: "9", Name: "Old"}})

	employees, err := s.service.Fetch(context.Background(), src, false)
	s.Require().NoError(err)
	s.Require().Len(employees, 1)
	s.Equal("Ana", employees[0].Name)
	s.Equal(employees, s.store.Employees(src.Key))
}

func (s *ServiceSuite) TestFetchAttendanceWithoutStore() {
	src, _ := s.service.ResolveSource(cache.SourceAttendance)
	_, err := s.service.Fetch(context.Background(), src, false)
	s.Require().Error(err)
	s.Equal(dErrors.CodeUnavailable, dErrors.CodeOf(err))
}

func (s *ServiceSuite) TestViewNarrowsStaleSelection() {
	src, _ := s.service.ResolveSource("10.0.0.1")
	s.store.SetEmployees(src.Key, []employee.Employee{{UID: "1"}, {UID: "2"}})
	s.service.Select(src, []string{"1", "2"})

	// A smaller list arrives; "2" is gone.
	s.store.SetEmployees(src.Key, []employee.Employee{{UID: "1"}})

	_, selected, err := s.service.View(context.Background(), src, false)
	s.Require().NoError(err)
	s.Equal([]string{"1"}, selected)

	// The narrowing is written back, not just rendered.
	_, stillSelected := s.store.Selected(src.Key)["2"]
	s.False(stillSelected)
}

func (s *ServiceSuite) TestPushUploadsOnlySelected() {
	src, _ := s.service.ResolveSource("10.0.0.1")
	s.store.SetEmployees(src.Key, []employee.Employee{
		{UID: "1", Name: "Ana", UserID: "100"},
		{UID: "2", Name: "Luis", UserID: "200"},
	})

	uploaded, opErrors, err := s.service.Push(context.Background(), src, []string{"2"})
	s.Require().NoError(err)
	s.Empty(opErrors)
	s.Equal([]string{"2"}, uploaded)
	s.Require().Len(s.conn.setCalls, 1)
	s.Equal("200", s.conn.setCalls[0].UserID)

	_, selected := s.store.Selected(src.Key)["2"]
	s.True(selected, "the pushed uids stay selected")
}

func (s *ServiceSuite) TestPushValidation() {
	src, _ := s.service.ResolveSource("10.0.0.1")

	_, _, err := s.service.Push(context.Background(), src, []string{"1"})
	s.Require().Error(err, "nothing cached")
	s.Equal(dErrors.CodeBadRequest, dErrors.CodeOf(err))

	s.store.SetEmployees(src.Key, []employee.Employee{{UID: "1"}})
	_, _, err = s.service.Push(context.Background(), src, nil)
	s.Require().Error(err, "nothing selected")

	_, _, err = s.service.Push(context.Background(), src, []string{"99"})
	s.Require().Error(err, "selection no longer cached")

	virtual, _ := s.service.ResolveSource(cache.SourcePayroll)
	_, _, err = s.service.Push(context.Background(), virtual, []string{"1"})
	s.Require().Error(err, "virtual sources cannot be pushed to")
}

func (s *ServiceSuite) TestDeleteDropsSelection() {
	src, _ := s.service.ResolveSource("10.0.0.1")
	s.store.SetEmployees(src.Key, []employee.Employee{
		{UID: "1", UserID: "100"},
		{UID: "2", UserID: "200"},
	})
	s.service.Select(src, []string{"1", "2"})

	deleted, opErrors, err := s.service.Delete(context.Background(), src, []string{"1"})
	s.Require().NoError(err)
	s.Empty(opErrors)
	s.Equal([]string{"1"}, deleted)

	selected := s.store.Selected(src.Key)
	_, ok := selected["1"]
	s.False(ok)
	_, ok = selected["2"]
	s.True(ok)
}

func (s *ServiceSuite) TestImport() {
	src, _ := s.service.ResolveSource("10.0.0.1")

	employees, err := s.service.Import(context.Background(), src, "empleados.json",
		[]byte(`[{"uid":"1","nombre":"Ana"}]`))
	s.Require().NoError(err)
	s.Require().Len(employees, 1)
	s.Equal("Ana", s.store.Employees(src.Key)[0].Name)

	_, err = s.service.Import(context.Background(), src, "empleados.txt", []byte("x"))
	s.Require().Error(err)
	s.Equal(dErrors.CodeBadRequest, dErrors.CodeOf(err))

	virtual, _ := s.service.ResolveSource(cache.SourcePayroll)
	_, err = s.service.Import(context.Background(), virtual, "empleados.json", []byte(`[]`))
	s.Require().Error(err)
}

func (s *ServiceSuite) TestExport() {
	src, _ := s.service.ResolveSource("10.0.0.1:4371")
	s.store.SetEmployees(src.Key, []employee.Employee{{UID: "1", Name: "Ana"}})

	file, err := s.service.Export(context.Background(), src, []string{"1"}, "csv")
	s.Require().NoError(err)
	s.Contains(file.Name, "empleados_10.0.0.1-4371_")
}

func (s *ServiceSuite) TestClear() {
	src, _ := s.service.ResolveSource("10.0.0.1")
	s.store.SetEmployees(src.Key, []employee.Employee{{UID: "1"}})

	s.Equal(1, s.service.Clear(context.Background(), src))
	s.Empty(s.store.Employees(src.Key))
	s.Equal(0, s.service.Clear(context.Background(), src))
}

func (s *ServiceSuite) TestUpdateCardValidation() {
	src, _ := s.service.ResolveSource("10.0.0.1")

	_, _, err := s.service.UpdateCard(context.Background(), src, "", "555001")
	s.Require().Error(err)

	// "0" normalizes to no card, which is not an assignable value.
	_, _, err = s.service.UpdateCard(context.Background(), src, "100", "0")
	s.Require().Error(err)
}

func (s *ServiceSuite) TestUpdateCard() {
	s.conn.users = []terminal.DeviceUser{{UID: 1, UserID: "100", Card: "111"}}
	src, _ := s.service.ResolveSource("10.0.0.1")

	changed, opErrors, err := s.service.UpdateCard(context.Background(), src, "100", "222")
	s.Require().NoError(err)
	s.Empty(opErrors)
	s.True(changed)
	s.Require().Len(s.conn.setCalls, 1)
	s.Equal("222", s.conn.setCalls[0].Card)
}

func (s *ServiceSuite) TestPushCardsWithoutAttendance() {
	src, _ := s.service.ResolveSource("10.0.0.1")
	s.store.SetEmployees(src.Key, []employee.Employee{{UID: "1", Card: "555"}})

	_, _, err := s.service.PushCards(context.Background(), src, []string{"1"})
	s.Require().Error(err)
	s.Equal(dErrors.CodeUnavailable, dErrors.CodeOf(err))
}

func TestFetchPayrollVirtualSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"CODIGO_ZK_ATRIBUTO": "00123", "NOMBRE": "Ana", "DNI": "11111111A", "COD_CT": "MAD"},
			{"CODIGO_ZK_ATRIBUTO": "", "NOMBRE": "Sin código"}
		]`))
	}))
	defer server.Close()

	logger := slog.New(slog.NewTextHandler(nopWriter{}, nil))
	connector := terminal.NewConnector(&fakeDialer{conn: &fakeConn{}}, 1, 0, time.Second, logger)
	store := cache.New()
	client := payroll.New(server.URL, time.Second, time.Hour, logger)
	service := NewService(terminal.NewService(connector, logger), store, client, nil, logger)

	src, err := service.ResolveSource(cache.SourcePayroll)
	require.NoError(t, err)

	employees, err := service.Fetch(context.Background(), src, false)
	require.NoError(t, err)
	require.Len(t, employees, 1, "records without a code are dropped")
	assert.Equal(t, "00123", employees[0].UserID)
	assert.Equal(t, "MAD", employees[0].GroupID)
	assert.Equal(t, employees, store.Employees(cache.SourcePayroll))
}
