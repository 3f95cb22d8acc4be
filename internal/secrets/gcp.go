package secrets

import (
	"context"
	"fmt"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	v1 "github.com/f9-o/launchpad/api/v1"
	"github.com/f9-o/launchpad/internal/core/logger"
	"github.com/f9-o/launchpad/internal/render"
	"github.com/f9-o/launchpad/pkg/errs"
)

// secretAPI is the subset of the Secret Manager client the store calls.
type secretAPI interface {
	CreateSecret(ctx context.Context, req *secretmanagerpb.CreateSecretRequest) (*secretmanagerpb.Secret, error)
	AddSecretVersion(ctx context.Context, req *secretmanagerpb.AddSecretVersionRequest) (*secretmanagerpb.SecretVersion, error)
	Close() error
}

type gcpClient struct {
	c *secretmanager.Client
}

func (g gcpClient) CreateSecret(ctx context.Context, req *secretmanagerpb.CreateSecretRequest) (*secretmanagerpb.Secret, error) {
	return g.c.CreateSecret(ctx, req)
}

func (g gcpClient) AddSecretVersion(ctx context.Context, req *secretmanagerpb.AddSecretVersionRequest) (*secretmanagerpb.SecretVersion, error) {
	return g.c.AddSecretVersion(ctx, req)
}

func (g gcpClient) Close() error { return g.c.Close() }

// SecretManagerStore writes the environment file and stores the database
// password as a new version of <project>-db-password in GCP Secret Manager.
type SecretManagerStore struct {
	EnvFileStore
	api     secretAPI
	project string
	log     *logger.Logger
}

// NewSecretManagerStore dials Secret Manager with application default
// credentials unless opts say otherwise.
func NewSecretManagerStore(ctx context.Context, project string, log *logger.Logger, opts ...option.ClientOption) (*SecretManagerStore, error) {
	if project == "" {
		return nil, errs.Newf(errs.ErrConfig, "secrets.gcp", "no GCP project configured").
			WithAdvice("set secrets.gcp_project in launchpad.yaml")
	}
	c, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrSecretStore, "secrets.gcp.connect").
			WithAdvice("run `gcloud auth application-default login` or set GOOGLE_APPLICATION_CREDENTIALS")
	}
	return &SecretManagerStore{api: gcpClient{c: c}, project: project, log: log}, nil
}

// Put writes the environment file, then creates the secret if needed and adds
// the password as its latest version.
func (s *SecretManagerStore) Put(ctx context.Context, cfg v1.ScaffoldConfig) ([]string, error) {
	files, err := s.EnvFileStore.Put(ctx, cfg)
	if err != nil {
		return nil, err
	}

	parent := fmt.Sprintf("projects/%s", s.project)
	id := render.SecretName(cfg)
	name := fmt.Sprintf("%s/secrets/%s", parent, id)

	_, err = s.api.CreateSecret(ctx, &secretmanagerpb.CreateSecretRequest{
		Parent:   parent,
		SecretId: id,
		Secret: &secretmanagerpb.Secret{
			Replication: &secretmanagerpb.Replication{
				Replication: &secretmanagerpb.Replication_Automatic_{
					Automatic: &secretmanagerpb.Replication_Automatic{},
				},
			},
			Labels: map[string]string{"managed-by": "launchpad"},
		},
	})
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return nil, errs.Wrap(err, errs.ErrSecretStore, "secrets.gcp.create").WithResource(name)
	}

	v, err := s.api.AddSecretVersion(ctx, &secretmanagerpb.AddSecretVersionRequest{
		Parent:  name,
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(cfg.Database.Password)},
	})
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrSecretStore, "secrets.gcp.add_version").WithResource(name)
	}
	s.log.Info("secret stored", "secret", name, "version", v.GetName())
	return files, nil
}

// Close releases the client connection.
func (s *SecretManagerStore) Close() error {
	return s.api.Close()
}
