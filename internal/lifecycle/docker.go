package lifecycle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/manuelinfosec/ebdeploy/internal/deploy"
	"github.com/manuelinfosec/ebdeploy/internal/templater"
)

// DockerrunFile is both the descriptor template in the service directory and
// the object key it is uploaded under.
const DockerrunFile = "Dockerrun.aws.json"

// configureDocker uploads the registry auth file, renders and uploads the
// docker run descriptor and registers it as an application version labelled
// with the image version. Writing or uploading the descriptor only warns.
func (d *Deployer) configureDocker(ctx context.Context, dc deploy.DeployContext) error {
	docker := d.Service.Docker
	bucket, configFile := dc.Bucket, ""

	if a := docker.Auth; a != nil {
		bucket, configFile = a.ConfigBucketName, a.ConfigFile
		d.log().Info("Uploading docker auth file to S3...")

		body, err := os.ReadFile(filepath.Join(d.Dir, configFile))
		if err != nil {
			return &deploy.ConfigurationError{Field: "docker.auth.configFile", Reason: err.Error()}
		}
		if _, err := d.Publisher.PublishBytes(ctx, body, deploy.Locator{Bucket: bucket, Key: configFile}); err != nil {
			d.log().Errorf("Failed to upload docker auth file: %v", err)
			return err
		}
		d.log().Info("Docker auth file uploaded to S3 successfully")
	}

	tmpl, err := os.ReadFile(filepath.Join(d.Dir, DockerrunFile))
	if err != nil {
		return &deploy.ConfigurationError{Field: "docker", Reason: fmt.Sprintf("%s template: %v", DockerrunFile, err)}
	}
	content := templater.Render(string(tmpl), map[string]string{
		"BUCKET_NAME": bucket,
		"CONFIG_FILE": configFile,
		"IMAGE":       docker.Image,
		"VERSION":     docker.Version,
	})

	out := filepath.Join(d.Dir, StateDir, DockerrunFile)
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		d.log().Warnf("Failed to create %s: %v", filepath.Dir(out), err)
	} else if err := os.WriteFile(out, []byte(content), 0o644); err != nil {
		d.log().Warnf("Failed to write %s: %v", out, err)
	}

	loc := deploy.Locator{Bucket: bucket, Key: DockerrunFile}
	if _, err := d.Publisher.PublishBytes(ctx, []byte(content), loc); err != nil {
		d.log().Warnf("Failed to upload %s: %v", DockerrunFile, err)
	}

	err = d.Host.CreateApplicationVersion(ctx, dc.Target.ApplicationName, docker.Version, loc, false)
	d.Metrics.RemoteCall("CreateApplicationVersion", err)
	if err != nil {
		d.log().Errorf("Failed to create docker application version %s: %v", docker.Version, err)
		return &deploy.RemoteCallError{Op: "CreateApplicationVersion", Err: err}
	}
	return nil
}
