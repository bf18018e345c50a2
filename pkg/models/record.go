package models

import (
	"time"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/types"
)

// PodRecord is the normalized metadata kept for one pod, keyed in the
// cache by its current pod IP.
type PodRecord struct {
	// Identity
	Name      string    `json:"name"`
	Namespace string    `json:"namespace"`
	UID       types.UID `json:"uid"`

	Labels      map[string]string `json:"labels"`
	Annotations map[string]string `json:"annotations"`

	// Placement and lifecycle
	NodeName  string          `json:"node_name"`
	Phase     corev1.PodPhase `json:"phase"`
	PodIP     string          `json:"pod_ip"`
	HostIP    string          `json:"host_ip"`
	StartTime string          `json:"start_time"` // RFC3339, empty if pod has not started

	Conditions []PodCondition    `json:"conditions"`
	Containers []ContainerRecord `json:"containers"`
}

// PodCondition is a flattened pod status condition.
type PodCondition struct {
	Type    string `json:"type"`
	Status  string `json:"status"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// ContainerRecord describes one declared container of a pod.
type ContainerRecord struct {
	Name  string          `json:"name"`
	Image string          `json:"image"`
	Ports []ContainerPort `json:"ports"`
}

// ContainerPort is a declared container port.
type ContainerPort struct {
	ContainerPort int32  `json:"containerPort"`
	Protocol      string `json:"protocol"`
}

// Key returns the stable namespace/name identity of the pod. The pod IP,
// not this key, is what the cache is indexed by.
func (r *PodRecord) Key() string {
	return r.Namespace + "/" + r.Name
}

// RecordFromPod extracts a PodRecord from a pod object. Returns false when
// the pod does not report an IP yet (e.g. not scheduled); such pods are
// not indexable and produce no record. Missing optional fields degrade to
// empty values, never to an error.
func RecordFromPod(pod *corev1.Pod) (*PodRecord, bool) {
	if pod == nil || pod.Status.PodIP == "" {
		return nil, false
	}

	rec := &PodRecord{
		Name:        pod.Name,
		Namespace:   pod.Namespace,
		UID:         pod.UID,
		Labels:      pod.Labels,
		Annotations: pod.Annotations,
		NodeName:    pod.Spec.NodeName,
		Phase:       pod.Status.Phase,
		PodIP:       pod.Status.PodIP,
		HostIP:      pod.Status.HostIP,
		Conditions:  []PodCondition{},
		Containers:  []ContainerRecord{},
	}

	if rec.Labels == nil {
		rec.Labels = map[string]string{}
	}
	if rec.Annotations == nil {
		rec.Annotations = map[string]string{}
	}

	if pod.Status.StartTime != nil {
		rec.StartTime = pod.Status.StartTime.Format(time.RFC3339)
	}

	for _, cond := range pod.Status.Conditions {
		rec.Conditions = append(rec.Conditions, PodCondition{
			Type:    string(cond.Type),
			Status:  string(cond.Status),
			Reason:  cond.Reason,
			Message: cond.Message,
		})
	}

	for _, container := range pod.Spec.Containers {
		cr := ContainerRecord{
			Name:  container.Name,
			Image: container.Image,
			Ports: []ContainerPort{},
		}
		for _, port := range container.Ports {
			protocol := string(port.Protocol)
			if protocol == "" {
				protocol = string(corev1.ProtocolTCP)
			}
			cr.Ports = append(cr.Ports, ContainerPort{
				ContainerPort: port.ContainerPort,
				Protocol:      protocol,
			})
		}
		rec.Containers = append(rec.Containers, cr)
	}

	return rec, true
}
