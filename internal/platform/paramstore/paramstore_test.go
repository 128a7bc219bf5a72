package paramstore

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

type fakeSSM struct {
	out  *ssm.GetParameterOutput
	err  error
	last *ssm.GetParameterInput
}

func (f *fakeSSM) GetParameter(_ context.Context, in *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.last = in
	return f.out, f.err
}

func mustNew(t *testing.T, api ssmAPI) *Store {
	t.Helper()
	s, err := New(api)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func expectErrContains(t *testing.T, err error, sub string) {
	t.Helper()
	if err == nil || !strings.Contains(err.Error(), sub) {
		t.Fatalf("expected error containing %q, got %v", sub, err)
	}
}

func TestGetParameterDecrypts(t *testing.T) {
	api := &fakeSSM{out: &ssm.GetParameterOutput{Parameter: &types.Parameter{
		Name:  aws.String("/threadchat/openai_api_key"),
		Value: aws.String("sk-test"),
		Type:  types.ParameterTypeSecureString,
	}}}
	s := mustNew(t, api)

	v, err := s.GetParameter(context.Background(), " /threadchat/openai_api_key ")
	if err != nil {
		t.Fatalf("GetParameter: %v", err)
	}
	if v != "sk-test" {
		t.Fatalf("value=%q", v)
	}
	if got := aws.ToString(api.last.Name); got != "/threadchat/openai_api_key" {
		t.Fatalf("requested name=%q", got)
	}
	if !aws.ToBool(api.last.WithDecryption) {
		t.Fatalf("expected WithDecryption")
	}
}

func TestGetParameterErrors(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatalf("expected error for nil client")
	}

	s := mustNew(t, &fakeSSM{err: errors.New("access denied")})
	_, err := s.GetParameter(context.Background(), "p")
	expectErrContains(t, err, "access denied")

	_, err = s.GetParameter(context.Background(), "  ")
	expectErrContains(t, err, "required")

	s = mustNew(t, &fakeSSM{out: &ssm.GetParameterOutput{Parameter: &types.Parameter{Name: aws.String("p")}}})
	_, err = s.GetParameter(context.Background(), "p")
	expectErrContains(t, err, "no value")

	_, err = (&Store{}).GetParameter(context.Background(), "p")
	expectErrContains(t, err, "not initialized")
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	store := mustNew(t, &fakeSSM{out: &ssm.GetParameterOutput{Parameter: &types.Parameter{Value: aws.String(" from-ssm \n")}}})

	if v, err := Resolve(ctx, store, "explicit", "/p"); err != nil || v != "explicit" {
		t.Fatalf("explicit: v=%q err=%v", v, err)
	}
	if v, err := Resolve(ctx, store, "", "/p"); err != nil || v != "from-ssm" {
		t.Fatalf("ssm: v=%q err=%v", v, err)
	}
	if v, err := Resolve(ctx, nil, "", ""); err != nil || v != "" {
		t.Fatalf("unset: v=%q err=%v", v, err)
	}
	if _, err := Resolve(ctx, nil, "", "/p"); err == nil {
		t.Fatalf("expected error without a getter")
	}
}
