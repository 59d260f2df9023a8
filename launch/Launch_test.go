package launch_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/google/go-cmp/cmp"
	"github.com/samuelfneumann/rllaunch/algo"
	"github.com/samuelfneumann/rllaunch/environment"
	"github.com/samuelfneumann/rllaunch/experiment/checkpointer"
	"github.com/samuelfneumann/rllaunch/launch"
	"github.com/samuelfneumann/rllaunch/variant"
)

func settings(t *testing.T) launch.Settings {
	t.Helper()
	s, err := launch.DefaultSettings()
	if err != nil {
		t.Fatalf("defaultSettings: %v", err)
	}
	s.CodeDir = t.TempDir()
	s.Out = &bytes.Buffer{}
	return s
}

func job(name string) launch.Job {
	return launch.Job{
		ExpPrefix:    "bonus-trpo-atari/exp-009f",
		ExpName:      name,
		Seed:         111,
		NParallel:    4,
		SnapshotMode: checkpointer.All,
		Variant:      variant.Variant{"seed": 111, "game": "pong"},
		Algo:         algo.NewTyped(algo.CategoricalRandom{}),
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		mode string
		want launch.Mode
		test bool
	}{
		{"local", launch.Local, false},
		{"local_test", launch.Local, true},
		{"local_docker_test", launch.LocalDocker, true},
		{"ec2", launch.EC2, false},
		{"ec2_test", launch.EC2, true},
		{"kube", launch.Kube, false},
	}

	for _, test := range tests {
		got, err := launch.ParseMode(test.mode)
		if err != nil {
			t.Errorf("parseMode(%q): %v", test.mode, err)
		}
		if got != test.want {
			t.Errorf("parseMode(%q): got %v, want %v", test.mode, got,
				test.want)
		}
		if launch.IsTest(test.mode) != test.test {
			t.Errorf("isTest(%q): got %v", test.mode, !test.test)
		}
	}

	if _, err := launch.ParseMode("slurm"); !errors.Is(err,
		environment.ErrNotImplemented) {
		t.Errorf("parseMode: expected ErrNotImplemented, got %v", err)
	}
}

func TestNames(t *testing.T) {
	stamp := launch.TimeStamp(time.Date(2016, 9, 3, 14, 5, 9, 0, time.UTC))
	if stamp != "20160903_140509" {
		t.Errorf("timeStamp: got %v", stamp)
	}

	long := strings.Repeat("a", launch.MaxNameLen+1)
	if err := launch.CheckName(long, launch.EC2); !errors.Is(err,
		launch.ErrNameTooLong) {
		t.Errorf("checkName: expected ErrNameTooLong, got %v", err)
	}
	if err := launch.CheckName(long, launch.Local); err != nil {
		t.Errorf("checkName: long names are fine locally, got %v", err)
	}
	if err := launch.CheckName(long[1:], launch.EC2); err != nil {
		t.Errorf("checkName: %v", err)
	}

	if p := launch.KubePrefix("bonus-trpo-atari/exp-009f"); p != "bonus-trpo-atari-exp-009f" {
		t.Errorf("kubePrefix: got %v", p)
	}
}

func TestCatalogue(t *testing.T) {
	c, err := launch.DefaultCatalogue()
	if err != nil {
		t.Fatalf("defaultCatalogue: %v", err)
	}

	i, err := c.Instance("c4.8xlarge")
	if err != nil {
		t.Fatalf("instance: %v", err)
	}
	if i.NParallel() != 18 || i.KubeCPU() != 27 {
		t.Errorf("c4.8xlarge: got %v workers and %v cpus", i.NParallel(),
			i.KubeCPU())
	}

	s, err := c.Subnet("us-west-1c")
	if err != nil {
		t.Fatalf("subnet: %v", err)
	}
	if s.SubnetID == "" || len(s.Groups) == 0 {
		t.Errorf("subnet: got %+v", s)
	}

	if _, err := c.Instance("z9.huge"); err == nil {
		t.Error("instance: expected error for unknown type")
	}
}

func TestSettings(t *testing.T) {
	s := settings(t)
	s.InstanceType = "c4.large"
	s.PriceMultiplier = 2

	price, err := s.SpotPrice()
	if err != nil {
		t.Fatalf("spotPrice: %v", err)
	}
	if price != "0.21" {
		t.Errorf("spotPrice: got %v, want 0.21", price)
	}

	// Bids keep every significant digit of the scaled price
	s.InstanceType = "c4.8xlarge"
	s.PriceMultiplier = 1.5
	if price, _ := s.SpotPrice(); price != "2.5125" {
		t.Errorf("spotPrice: got %v, want 2.5125", price)
	}

	n, err := s.NParallel(launch.EC2, 4)
	if err != nil || n != 1 {
		t.Errorf("nParallel(ec2): got %v, %v", n, err)
	}
	if n, _ := s.NParallel(launch.Local, 4); n != 4 {
		t.Errorf("nParallel(local): got %v, want 4", n)
	}
}

func TestJobArgs(t *testing.T) {
	j := job("alex_20160903_140509_pong_ram")
	args, err := j.Args("data/local/exp")
	if err != nil {
		t.Fatalf("args: %v", err)
	}

	flags := make(map[string]string)
	for i := 0; i+1 < len(args); i += 2 {
		flags[args[i]] = args[i+1]
	}
	if flags["--seed"] != "111" || flags["--snapshot_mode"] != "all" {
		t.Errorf("args: got %v", args)
	}

	v, err := launch.DecodeVariant(flags["--variant_data"])
	if err != nil {
		t.Fatalf("decodeVariant: %v", err)
	}
	if v.Int("seed") != 111 || v.String("game") != "pong" {
		t.Errorf("decodeVariant: got %v", v)
	}

	a, err := launch.DecodeAlgo(flags["--args_data"])
	if err != nil {
		t.Fatalf("decodeAlgo: %v", err)
	}
	if diff := cmp.Diff(j.Algo, a); diff != "" {
		t.Errorf("decodeAlgo (-want +got):\n%s", diff)
	}
}

func TestJobValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*launch.Job)
	}{
		{"name", func(j *launch.Job) { j.ExpName = "" }},
		{"workers", func(j *launch.Job) { j.NParallel = 0 }},
		{"snapshot mode", func(j *launch.Job) { j.SnapshotMode = "best" }},
		{"snapshot gap", func(j *launch.Job) {
			j.SnapshotMode = checkpointer.Gap
		}},
		{"algorithm", func(j *launch.Job) { j.Algo = algo.Typed{} }},
	}

	for _, test := range tests {
		j := job("valid")
		test.mutate(&j)
		if err := j.Validate(launch.Local); err == nil {
			t.Errorf("validate %v: expected error", test.name)
		}
	}
}

func TestLocalSubmitter(t *testing.T) {
	if _, err := exec.LookPath("echo"); err != nil {
		t.Skip("echo not available")
	}
	s := settings(t)
	s.Python = "echo"
	out := &bytes.Buffer{}
	s.Out = out

	sub, err := launch.NewSubmitter(context.Background(), launch.Local, s)
	if err != nil {
		t.Fatalf("newSubmitter: %v", err)
	}
	if err := sub.Submit(context.Background(), job("run")); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !strings.Contains(out.String(), "--exp_name run") {
		t.Errorf("output: got %q", out.String())
	}
	if _, err := os.Stat(filepath.Join(s.CodeDir, s.LogDir,
		"bonus-trpo-atari/exp-009f/run")); err != nil {
		t.Errorf("log directory: %v", err)
	}

	out.Reset()
	j := job("dry")
	j.Dry = true
	if err := sub.Submit(context.Background(), j); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("dry run should not execute, got %q", out.String())
	}
}

func TestDockerCommand(t *testing.T) {
	s := settings(t)
	d := &launch.DockerSubmitter{Settings: s}

	j := job("docker")
	j.UseGPU = true
	command, err := d.DockerCommand(j)
	if err != nil {
		t.Fatalf("dockerCommand: %v", err)
	}

	joined := strings.Join(command, " ")
	for _, want := range []string{"docker run --rm --gpus all", s.DockerImage,
		s.DockerCodeDir, "--exp_name docker", "/bin/bash -c"} {
		if !strings.Contains(joined, want) {
			t.Errorf("dockerCommand: %q missing %q", joined, want)
		}
	}
}

type fakeEC2 struct {
	requests []*ec2.RequestSpotInstancesInput
	tags     []*ec2.CreateTagsInput
}

func (f *fakeEC2) RequestSpotInstances(_ context.Context,
	params *ec2.RequestSpotInstancesInput,
	_ ...func(*ec2.Options)) (*ec2.RequestSpotInstancesOutput, error) {
	f.requests = append(f.requests, params)
	return &ec2.RequestSpotInstancesOutput{
		SpotInstanceRequests: []types.SpotInstanceRequest{
			{SpotInstanceRequestId: aws.String("sir-1")},
		},
	}, nil
}

func (f *fakeEC2) CreateTags(_ context.Context, params *ec2.CreateTagsInput,
	_ ...func(*ec2.Options)) (*ec2.CreateTagsOutput, error) {
	f.tags = append(f.tags, params)
	return &ec2.CreateTagsOutput{}, nil
}

func TestEC2Submitter(t *testing.T) {
	s := settings(t)
	s.InstanceType = "c4.2xlarge"
	s.Subnet = "us-west-1c"
	client := &fakeEC2{}
	sub := launch.NewEC2Submitter(s, client)

	j := job("ec2")
	j.TerminateMachine = true
	j.SyncS3PKL = true
	j.PeriodicSyncInterval = time.Minute
	if err := sub.Submit(context.Background(), j); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(client.requests) != 1 || len(client.tags) != 1 {
		t.Fatalf("submit: got %v requests and %v tags", len(client.requests),
			len(client.tags))
	}

	req := client.requests[0]
	if aws.ToString(req.SpotPrice) != "0.419" {
		t.Errorf("spot price: got %v", aws.ToString(req.SpotPrice))
	}
	spec := req.LaunchSpecification
	if spec.InstanceType != types.InstanceType("c4.2xlarge") {
		t.Errorf("instance type: got %v", spec.InstanceType)
	}
	subnet, _ := s.Catalogue.Subnet("us-west-1c")
	iface := spec.NetworkInterfaces[0]
	if aws.ToString(iface.SubnetId) != subnet.SubnetID ||
		aws.ToInt32(iface.DeviceIndex) != 0 ||
		!aws.ToBool(iface.AssociatePublicIpAddress) {
		t.Errorf("network interface: got %+v", iface)
	}

	data, err := base64.StdEncoding.DecodeString(aws.ToString(spec.UserData))
	if err != nil {
		t.Fatalf("user data: %v", err)
	}
	script := string(data)
	for _, want := range []string{"docker run", "terminate-instances",
		"sleep 60", "--include '*.gob'", "--exp_name ec2"} {
		if !strings.Contains(script, want) {
			t.Errorf("user data missing %q:\n%s", want, script)
		}
	}

	if got := client.tags[0].Resources[0]; got != "sir-1" {
		t.Errorf("tags: got resource %v", got)
	}

	j.Dry = true
	if err := sub.Submit(context.Background(), j); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(client.requests) != 1 {
		t.Error("dry run should not request instances")
	}
}

func TestKubePod(t *testing.T) {
	s := settings(t)
	s.InstanceType = "c4.8xlarge"
	k := &launch.KubeSubmitter{Settings: s}

	pod, err := k.Pod(job("Alex_Pong"))
	if err != nil {
		t.Fatalf("pod: %v", err)
	}
	if pod.Metadata.Name != "alex-pong" {
		t.Errorf("name: got %v", pod.Metadata.Name)
	}
	if cpu := pod.Spec.Containers[0].Resources.Requests["cpu"]; cpu != 27 {
		t.Errorf("cpu: got %v, want 27", cpu)
	}
	if sel := pod.Spec.NodeSelector["aws/type"]; sel != "c4.8xlarge" {
		t.Errorf("node selector: got %v", sel)
	}
	cmd := strings.Join(pod.Spec.Containers[0].Command, " ")
	if !strings.Contains(cmd, "bonus-trpo-atari-exp-009f/Alex_Pong") {
		t.Errorf("command should use kube prefix: %v", cmd)
	}

	j := job("dry")
	j.Dry = true
	if err := k.Submit(context.Background(), j); err != nil {
		t.Errorf("submit: %v", err)
	}
}

type countingSubmitter struct {
	jobs []launch.Job
}

func (c *countingSubmitter) Submit(_ context.Context, j launch.Job) error {
	c.jobs = append(c.jobs, j)
	return nil
}

func TestLauncher(t *testing.T) {
	jobs := []launch.Job{job("a"), job("b"), job("c")}

	sub := &countingSubmitter{}
	l := &launch.Launcher{Mode: launch.Kube, Submitter: sub, Dry: true}
	names, err := l.Launch(context.Background(), jobs)
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, names); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}
	for _, j := range sub.jobs {
		if !j.Dry || strings.Contains(j.ExpPrefix, "/") {
			t.Errorf("job: got dry %v prefix %v", j.Dry, j.ExpPrefix)
		}
	}
	if !l.ShouldRecord() {
		t.Error("shouldRecord: kube launches are recorded")
	}

	sub = &countingSubmitter{}
	l = &launch.Launcher{Mode: launch.Local, Test: true, Submitter: sub}
	if _, err := l.Launch(context.Background(), jobs); err != nil {
		t.Fatalf("launch: %v", err)
	}
	if len(sub.jobs) != 1 {
		t.Errorf("test mode: got %v jobs, want 1", len(sub.jobs))
	}
	if l.ShouldRecord() {
		t.Error("shouldRecord: local launches are not recorded")
	}

	sub = &countingSubmitter{}
	l = &launch.Launcher{Mode: launch.EC2, Submitter: sub}
	long := job(strings.Repeat("x", 70))
	if _, err := l.Launch(context.Background(),
		[]launch.Job{job("ok"), long}); !errors.Is(err,
		launch.ErrNameTooLong) {
		t.Errorf("launch: expected ErrNameTooLong, got %v", err)
	}
	if len(sub.jobs) != 0 {
		t.Error("launch: no job should be submitted when one is invalid")
	}
}

func TestRecord(t *testing.T) {
	r := launch.Record{Branch: "master", Commit: "abc123",
		Names: []string{"exp_1", "exp_2"}}

	path := filepath.Join(t.TempDir(), "exp.log")
	if err := r.Save(path, true); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := r.Save(path, true); err != nil {
		t.Fatalf("save over read-only record: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0444 {
		t.Errorf("mode: got %v, want read-only", info.Mode().Perm())
	}

	data, _ := os.ReadFile(path)
	want := "branch: master\ncommit SHA: abc123\n\"exp_1\",\n\"exp_2\",\n"
	if string(data) != want {
		t.Errorf("record: got %q, want %q", data, want)
	}

	rec := launch.NewRecord(context.Background(), t.TempDir(), nil)
	if rec.Branch == "" || rec.Commit == "" {
		t.Errorf("newRecord: got %+v", rec)
	}
}
