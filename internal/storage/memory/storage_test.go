package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/rpslsgame/internal/storage"
)

type StorageSuite struct {
	suite.Suite
	storage *Storage
	ctx     context.Context
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.storage = New()
	s.ctx = context.Background()
}

func (s *StorageSuite) TestSetAndGet() {
	s.Require().NoError(s.storage.Set(s.ctx, "a", []byte("one")))

	value, err := s.storage.Get(s.ctx, "a")
	s.Require().NoError(err)
	s.Equal([]byte("one"), value)
}

func (s *StorageSuite) TestGetNotFound() {
	_, err := s.storage.Get(s.ctx, "missing")
	s.ErrorIs(err, storage.ErrNotFound)
}

func (s *StorageSuite) TestSetOverwrites() {
	_ = s.storage.Set(s.ctx, "a", []byte("one"))
	_ = s.storage.Set(s.ctx, "a", []byte("two"))

	value, err := s.storage.Get(s.ctx, "a")
	s.Require().NoError(err)
	s.Equal([]byte("two"), value)
}

func (s *StorageSuite) TestValuesAreCopied() {
	input := []byte("one")
	_ = s.storage.Set(s.ctx, "a", input)
	input[0] = 'X'

	value, _ := s.storage.Get(s.ctx, "a")
	s.Equal([]byte("one"), value)

	value[0] = 'Y'
	again, _ := s.storage.Get(s.ctx, "a")
	s.Equal([]byte("one"), again)
}

func (s *StorageSuite) TestDelete() {
	_ = s.storage.Set(s.ctx, "a", []byte("one"))

	s.Require().NoError(s.storage.Delete(s.ctx, "a"))

	_, err := s.storage.Get(s.ctx, "a")
	s.ErrorIs(err, storage.ErrNotFound)
}

func (s *StorageSuite) TestDeleteMissingIsNoop() {
	s.NoError(s.storage.Delete(s.ctx, "missing"))
}

func (s *StorageSuite) TestKeysByPrefix() {
	_ = s.storage.Set(s.ctx, "rpsls:secret:0xbb", []byte("1"))
	_ = s.storage.Set(s.ctx, "rpsls:secret:0xaa", []byte("2"))
	_ = s.storage.Set(s.ctx, "rpsls:result:0xaa", []byte("3"))

	keys, err := s.storage.Keys(s.ctx, "rpsls:secret:")
	s.Require().NoError(err)
	s.Equal([]string{"rpsls:secret:0xaa", "rpsls:secret:0xbb"}, keys)
}

func (s *StorageSuite) TestKeysEmpty() {
	keys, err := s.storage.Keys(s.ctx, "rpsls:")
	s.Require().NoError(err)
	s.Empty(keys)
}
