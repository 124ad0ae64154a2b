package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/rpslsgame/internal/model"
	"github.com/mcoot/rpslsgame/internal/storage"
	"github.com/mcoot/rpslsgame/internal/storage/memory"
)

const gameAddr = model.Address("0x5fbdb2315678afecb367f032d93f642f64180aa3")

type RecordsSuite struct {
	suite.Suite
	store   *memory.Storage
	records *storage.Records
	ctx     context.Context
}

func TestRecordsSuite(t *testing.T) {
	suite.Run(t, new(RecordsSuite))
}

func (s *RecordsSuite) SetupTest() {
	s.store = memory.New()
	s.records = storage.NewRecords(s.store)
	s.ctx = context.Background()
}

func (s *RecordsSuite) TestCleartextSecretRoundTrip() {
	var salt model.Salt
	salt[31] = 7
	secret := &model.StoredSecret{
		Address:   gameAddr,
		Move:      model.MoveSpock,
		Salt:      salt,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	s.Require().NoError(s.records.SaveSecret(s.ctx, secret))

	got, ok, err := s.records.GetSecret(s.ctx, gameAddr)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.False(got.IsEncrypted())
	s.Equal(model.MoveSpock, got.Move)
	s.Equal(salt, got.Salt)
	s.True(secret.CreatedAt.Equal(got.CreatedAt))
}

func (s *RecordsSuite) TestEncryptedSecretStoresNoMove() {
	secret := &model.StoredSecret{
		Address:   gameAddr,
		Encrypted: &model.EncryptedSecret{Nonce: []byte{1, 2, 3}, Ciphertext: []byte{4, 5, 6}},
	}

	s.Require().NoError(s.records.SaveSecret(s.ctx, secret))

	raw, err := s.store.Get(s.ctx, storage.SecretKey(gameAddr))
	s.Require().NoError(err)
	s.NotContains(string(raw), `"move"`)
	s.NotContains(string(raw), `"salt"`)

	got, ok, err := s.records.GetSecret(s.ctx, gameAddr)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.True(got.IsEncrypted())
	s.Equal(model.MoveNone, got.Move)
	s.Equal([]byte{4, 5, 6}, got.Encrypted.Ciphertext)
}

func (s *RecordsSuite) TestSaveSecretRejectsInvalidMove() {
	err := s.records.SaveSecret(s.ctx, &model.StoredSecret{Address: gameAddr, Move: model.MoveNone})
	s.ErrorIs(err, model.ErrInvalidMove)
}

func (s *RecordsSuite) TestSecretKeyIsCaseInsensitive() {
	upper := model.Address("0x5FBDB2315678AFECB367F032D93F642F64180AA3")
	s.Require().NoError(s.records.SaveSecret(s.ctx, &model.StoredSecret{Address: upper, Move: model.MoveRock}))

	_, ok, err := s.records.GetSecret(s.ctx, gameAddr)
	s.Require().NoError(err)
	s.True(ok)
}

func (s *RecordsSuite) TestGetSecretMissing() {
	got, ok, err := s.records.GetSecret(s.ctx, gameAddr)
	s.NoError(err)
	s.False(ok)
	s.Nil(got)
}

func (s *RecordsSuite) TestDeleteSecret() {
	_ = s.records.SaveSecret(s.ctx, &model.StoredSecret{Address: gameAddr, Move: model.MoveRock})

	s.Require().NoError(s.records.DeleteSecret(s.ctx, gameAddr))

	_, ok, err := s.records.GetSecret(s.ctx, gameAddr)
	s.NoError(err)
	s.False(ok)
}

func (s *RecordsSuite) TestCloseSecretKeepsOpening() {
	enc := &model.EncryptedSecret{Nonce: []byte{1}, Ciphertext: []byte{2}}
	s.Require().NoError(s.records.SaveSecret(s.ctx, &model.StoredSecret{Address: gameAddr, Encrypted: enc}))

	closedAt := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	ok, err := s.records.CloseSecret(s.ctx, model.Address("0x5FbDB2315678afecb367f032d93F642f64180aa3"), closedAt)
	s.Require().NoError(err)
	s.True(ok)

	got, ok, err := s.records.GetSecret(s.ctx, gameAddr)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.True(got.Closed())
	s.True(closedAt.Equal(got.ClosedAt))
	s.Equal(enc, got.Encrypted)
}

func (s *RecordsSuite) TestCloseSecretMissing() {
	ok, err := s.records.CloseSecret(s.ctx, gameAddr, time.Now())
	s.NoError(err)
	s.False(ok)
}

func (s *RecordsSuite) TestOpenSecretIsNotClosed() {
	s.Require().NoError(s.records.SaveSecret(s.ctx, &model.StoredSecret{Address: gameAddr, Move: model.MoveRock}))

	got, _, err := s.records.GetSecret(s.ctx, gameAddr)
	s.Require().NoError(err)
	s.False(got.Closed())

	raw, err := s.store.Get(s.ctx, storage.SecretKey(gameAddr))
	s.Require().NoError(err)
	s.NotContains(string(raw), "closed_at")
}

func (s *RecordsSuite) TestListSecrets() {
	other := model.Address("0x0000000000000000000000000000000000000001")
	_ = s.records.SaveSecret(s.ctx, &model.StoredSecret{Address: gameAddr, Move: model.MoveRock})
	_ = s.records.SaveSecret(s.ctx, &model.StoredSecret{Address: other, Move: model.MovePaper})
	_ = s.records.SaveResult(s.ctx, gameAddr, &model.GameResult{Winner: model.WinnerTie})

	secrets, err := s.records.ListSecrets(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(secrets, 2)
	s.Equal(other, secrets[0].Address)
	s.Equal(gameAddr, secrets[1].Address)
}

func (s *RecordsSuite) TestCorruptSecretIsAnError() {
	_ = s.store.Set(s.ctx, storage.SecretKey(gameAddr), []byte("{not json"))

	_, _, err := s.records.GetSecret(s.ctx, gameAddr)
	s.Error(err)
}

func (s *RecordsSuite) TestResultRoundTrip() {
	result := &model.GameResult{Winner: model.WinnerPlayer2, Move1: model.MoveRock, Move2: model.MoveSpock}
	s.Require().NoError(s.records.SaveResult(s.ctx, gameAddr, result))

	got, ok, err := s.records.GetResult(s.ctx, gameAddr)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal(result, got)
}

func (s *RecordsSuite) TestVaultRecords() {
	cred := &model.Credential{ID: []byte("cred"), UserHandle: []byte("user")}
	wrapped := &model.WrappedMasterKey{KDFSalt: []byte{1}, Nonce: []byte{2}, Ciphertext: []byte{3}}

	s.Require().NoError(s.records.SaveCredential(s.ctx, cred))
	s.Require().NoError(s.records.SaveWrappedKey(s.ctx, wrapped))
	s.Require().NoError(s.records.SaveKeyPath(s.ctx, model.KeyPathPIN))

	gotCred, ok, err := s.records.GetCredential(s.ctx)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(cred.ID, gotCred.ID)

	gotWrapped, ok, err := s.records.GetWrappedKey(s.ctx)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(wrapped, gotWrapped)

	path, ok, err := s.records.GetKeyPath(s.ctx)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(model.KeyPathPIN, path)

	s.Require().NoError(s.records.DeleteVault(s.ctx))

	_, ok, _ = s.records.GetCredential(s.ctx)
	s.False(ok)
	_, ok, _ = s.records.GetWrappedKey(s.ctx)
	s.False(ok)
	_, ok, _ = s.records.GetKeyPath(s.ctx)
	s.False(ok)
}

func (s *RecordsSuite) TestUnknownKeyPathIsAnError() {
	_ = s.store.Set(s.ctx, storage.KeyPathKey, []byte("BIOMETRIC"))

	_, _, err := s.records.GetKeyPath(s.ctx)
	s.Error(err)
}
