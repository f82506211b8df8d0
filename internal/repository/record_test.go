package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/wfunc/superrpg-core/internal/models"
)

// RecordRepositoryTestSuite 记录仓储测试套件
type RecordRepositoryTestSuite struct {
	suite.Suite
	repo RecordRepository
}

func (suite *RecordRepositoryTestSuite) SetupTest() {
	suite.repo = NewRecordRepository(SetupTestDB(suite.T()))
}

// TestFind_NotFound 测试查找不存在的记录
func (suite *RecordRepositoryTestSuite) TestFind_NotFound() {
	_, err := suite.repo.Find(context.Background(), models.TablePlayerData, "missing")
	suite.ErrorIs(err, ErrRecordNotFound)
}

// TestUpsert 测试插入与覆盖
func (suite *RecordRepositoryTestSuite) TestUpsert() {
	ctx := context.Background()

	row := &models.RecordRow{ID: "p1", SchemaVersion: 1, Data: `{"level":1}`}
	suite.Require().NoError(suite.repo.Upsert(ctx, models.TablePlayerData, row))

	row2 := &models.RecordRow{ID: "p1", SchemaVersion: 1, Data: `{"level":2}`}
	suite.Require().NoError(suite.repo.Upsert(ctx, models.TablePlayerData, row2))

	found, err := suite.repo.Find(ctx, models.TablePlayerData, "p1")
	suite.Require().NoError(err)
	suite.Equal(`{"level":2}`, found.Data)

	count, err := suite.repo.Count(ctx, models.TablePlayerData)
	suite.Require().NoError(err)
	suite.Equal(int64(1), count)

	// 不同表互不影响
	_, err = suite.repo.Find(ctx, models.TablePlayerSkills, "p1")
	suite.ErrorIs(err, ErrRecordNotFound)
}

// TestUpsertAll 测试事务批量写入
func (suite *RecordRepositoryTestSuite) TestUpsertAll() {
	ctx := context.Background()

	err := suite.repo.UpsertAll(ctx, []TableRow{
		{Table: models.TablePlayerData, Row: &models.RecordRow{ID: "p1", SchemaVersion: 1, Data: "{}"}},
		{Table: models.TablePlayerProfessions, Row: &models.RecordRow{ID: "p1", SchemaVersion: 1, Data: "{}"}},
	})
	suite.Require().NoError(err)

	_, err = suite.repo.Find(ctx, models.TablePlayerProfessions, "p1")
	suite.NoError(err)

	suite.NoError(suite.repo.UpsertAll(ctx, nil))
}

// TestUpsertAll_Rollback 测试任一写入失败整体回滚
func (suite *RecordRepositoryTestSuite) TestUpsertAll_Rollback() {
	ctx := context.Background()

	err := suite.repo.UpsertAll(ctx, []TableRow{
		{Table: models.TablePlayerData, Row: &models.RecordRow{ID: "p2", SchemaVersion: 1, Data: "{}"}},
		{Table: "no_such_table", Row: &models.RecordRow{ID: "p2", SchemaVersion: 1, Data: "{}"}},
	})
	suite.Error(err)

	_, err = suite.repo.Find(ctx, models.TablePlayerData, "p2")
	suite.ErrorIs(err, ErrRecordNotFound)
}

// TestDelete 测试删除
func (suite *RecordRepositoryTestSuite) TestDelete() {
	ctx := context.Background()
	suite.Require().NoError(suite.repo.Upsert(ctx, models.TablePlayerSkills, &models.RecordRow{ID: "p3", SchemaVersion: 1, Data: "{}"}))
	suite.Require().NoError(suite.repo.Delete(ctx, models.TablePlayerSkills, "p3"))

	_, err := suite.repo.Find(ctx, models.TablePlayerSkills, "p3")
	suite.ErrorIs(err, ErrRecordNotFound)
}

func TestRecordRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RecordRepositoryTestSuite))
}
