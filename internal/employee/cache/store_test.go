package cache

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/karlutxo/zk-tools/internal/employee"
)

type StoreSuite struct {
	suite.Suite
	store *Store
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	s.store = New()
}

func (s *StoreSuite) TestEmployeesUnknownKeyEmpty() {
	s.Empty(s.store.Employees("10.0.0.1"))
}

func (s *StoreSuite) TestSetEmployeesFullReplace() {
	s.store.SetEmployees("10.0.0.1", []employee.Employee{{UID: "1"}, {UID: "2"}})
	s.store.SetEmployees("10.0.0.1", []employee.Employee{{UID: "3"}})

	emps := s.store.Employees("10.0.0.1")
	s.Require().Len(emps, 1)
	s.Equal("3", emps[0].UID)
}

func (s *StoreSuite) TestEmployeesReturnsCopy() {
	s.store.SetEmployees("10.0.0.1", []employee.Employee{{UID: "1"}})
	emps := s.store.Employees("10.0.0.1")
	emps[0].UID = "mutated"
	s.Equal("1", s.store.Employees("10.0.0.1")[0].UID)
}

func (s *StoreSuite) TestSelectedCopyNotLive() {
	s.store.SetSelected("src", map[string]struct{}{"1": {}})
	selected := s.store.Selected("src")
	selected["2"] = struct{}{}
	s.Len(s.store.Selected("src"), 1)
}

func (s *StoreSuite) TestRemoveSelected() {
	s.store.SetSelected("src", map[string]struct{}{"1": {}, "2": {}, "3": {}})
	s.store.RemoveSelected("src", []string{"1", "3", "missing"})
	s.Equal(map[string]struct{}{"2": {}}, s.store.Selected("src"))
}

func (s *StoreSuite) TestRemoveSelectedUnknownKeyNoop() {
	s.store.RemoveSelected("unknown", []string{"1"})
	s.Empty(s.store.Selected("unknown"))
}

func (s *StoreSuite) TestClearReturnsRemovedAndDropsSelection() {
	s.store.SetEmployees("src", []employee.Employee{{UID: "1"}})
	s.store.SetSelected("src", map[string]struct{}{"1": {}})

	removed := s.store.Clear("src")
	s.Require().Len(removed, 1)
	s.Empty(s.store.Employees("src"))
	s.Empty(s.store.Selected("src"))
}

func (s *StoreSuite) TestClearUnknownKeyReturnsEmpty() {
	s.NotNil(s.store.Clear("unknown"))
	s.Empty(s.store.Clear("unknown"))
}

func (s *StoreSuite) TestClearAll() {
	s.store.SetEmployees("a", []employee.Employee{{UID: "1"}})
	s.store.SetSelected("a", map[string]struct{}{"1": {}})
	s.store.SetEmployees("b", []employee.Employee{{UID: "2"}})

	s.store.ClearAll()
	s.Empty(s.store.Employees("a"))
	s.Empty(s.store.Employees("b"))
	s.Empty(s.store.Selected("a"))
}

func (s *StoreSuite) TestVirtualSourceKeys() {
	s.True(IsVirtualSource(SourcePayroll))
	s.True(IsVirtualSource(SourceAttendance))
	s.False(IsVirtualSource("192.168.1.20:4370"))
}
