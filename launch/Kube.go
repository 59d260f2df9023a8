package launch

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type kubeMetadata struct {
	Name   string            `yaml:"name"`
	Labels map[string]string `yaml:"labels"`
}

type kubeResources struct {
	Requests map[string]interface{} `yaml:"requests"`
	Limits   map[string]interface{} `yaml:"limits,omitempty"`
}

type kubeMount struct {
	Name      string `yaml:"name"`
	MountPath string `yaml:"mountPath"`
}

type kubeContainer struct {
	Name            string        `yaml:"name"`
	Image           string        `yaml:"image"`
	Command         []string      `yaml:"command"`
	Resources       kubeResources `yaml:"resources"`
	ImagePullPolicy string        `yaml:"imagePullPolicy"`
	VolumeMounts    []kubeMount   `yaml:"volumeMounts"`
}

type kubeVolume struct {
	Name     string            `yaml:"name"`
	HostPath map[string]string `yaml:"hostPath"`
}

type kubeSpec struct {
	Containers    []kubeContainer   `yaml:"containers"`
	Volumes       []kubeVolume      `yaml:"volumes"`
	RestartPolicy string            `yaml:"restartPolicy"`
	NodeSelector  map[string]string `yaml:"nodeSelector,omitempty"`
}

// KubePod is the pod manifest of a job
type KubePod struct {
	APIVersion string       `yaml:"apiVersion"`
	Kind       string       `yaml:"kind"`
	Metadata   kubeMetadata `yaml:"metadata"`
	Spec       kubeSpec     `yaml:"spec"`
}

// KubeSubmitter submits each job as a Kubernetes pod scheduled on a
// node of the configured instance type
type KubeSubmitter struct {
	Settings
}

// Pod returns the pod manifest that runs job
func (k *KubeSubmitter) Pod(job Job) (KubePod, error) {
	inst, err := k.Catalogue.Instance(k.InstanceType)
	if err != nil {
		return KubePod{}, fmt.Errorf("pod: %w", err)
	}

	job.ExpPrefix = KubePrefix(job.ExpPrefix)
	logDir := path.Join(k.DockerLogDir, job.Path())
	command, err := k.Command(job, logDir)
	if err != nil {
		return KubePod{}, fmt.Errorf("pod: %w", err)
	}

	resources := kubeResources{
		Requests: map[string]interface{}{"cpu": inst.KubeCPU()},
	}
	if job.UseGPU {
		resources.Limits = map[string]interface{}{"nvidia.com/gpu": 1}
	}

	return KubePod{
		APIVersion: "v1",
		Kind:       "Pod",
		Metadata: kubeMetadata{
			Name: kubeName(job.ExpName),
			Labels: map[string]string{
				"owner":    "rllaunch",
				"expt":     kubeName(job.ExpPrefix),
				"exp_name": kubeName(job.ExpName),
			},
		},
		Spec: kubeSpec{
			Containers: []kubeContainer{
				{
					Name:            "foo",
					Image:           k.DockerImage,
					Command:         []string{"/bin/bash", "-c", shellJoin(command)},
					Resources:       resources,
					ImagePullPolicy: "IfNotPresent",
					VolumeMounts: []kubeMount{
						{Name: "data", MountPath: k.DockerLogDir},
					},
				},
			},
			Volumes: []kubeVolume{
				{Name: "data", HostPath: map[string]string{"path": "/data"}},
			},
			RestartPolicy: "Never",
			NodeSelector:  map[string]string{"aws/type": k.InstanceType},
		},
	}, nil
}

// Submit implements the Submitter interface. The manifest is written
// under the manifest directory and applied with kubectl.
func (k *KubeSubmitter) Submit(ctx context.Context, job Job) error {
	pod, err := k.Pod(job)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	manifest, err := yaml.Marshal(pod)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}

	file := filepath.Join(k.KubeManifestDir, KubePrefix(job.ExpPrefix),
		job.ExpName+".yaml")
	if job.Dry {
		k.logger().Info("kube manifest", "file", file, "manifest",
			string(manifest), "dry", true)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	if err := os.WriteFile(file, manifest, 0644); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	return k.run(ctx, false, k.CodeDir, []string{"kubectl", "apply", "-f",
		file})
}
